package estimator

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/hearthside-robotics/homerover/internal/config"
	"github.com/hearthside-robotics/homerover/internal/nav"
)

// EstimatorConfig holds noise parameters for the pose filter.
type EstimatorConfig struct {
	ProcessNoisePos  float64 // position process noise (σ²)
	ProcessNoiseVel  float64 // velocity process noise (σ²)
	MeasurementNoise float64 // pose fix measurement noise (σ²)

	// HeadingGain is the fraction of each heading innovation applied per
	// update, in (0, 1].
	HeadingGain float64
}

// DefaultEstimatorConfig returns production-default filter parameters.
func DefaultEstimatorConfig() EstimatorConfig {
	return EstimatorConfig{
		ProcessNoisePos:  0.1,
		ProcessNoiseVel:  0.5,
		MeasurementNoise: 0.3,
		HeadingGain:      0.8,
	}
}

// EstimatorConfigFromTuning derives estimator config from a TuningConfig.
func EstimatorConfigFromTuning(t *config.TuningConfig) EstimatorConfig {
	return EstimatorConfig{
		ProcessNoisePos:  t.GetProcessNoisePos(),
		ProcessNoiseVel:  t.GetProcessNoiseVel(),
		MeasurementNoise: t.GetMeasurementNoise(),
		HeadingGain:      0.8,
	}
}

// Estimate is the filter's current belief.
type Estimate struct {
	Pose      nav.Pose
	VX        float64
	VY        float64
	UnixNanos int64
}

// PoseEstimator fuses odometry pose fixes through a constant-velocity
// Kalman filter over [x, y, vx, vy]. Heading wraps, so it is fused outside
// the linear filter with a wrapped innovation.
type PoseEstimator struct {
	config EstimatorConfig

	mu          sync.Mutex
	initialized bool
	x           *mat.VecDense // state [x, y, vx, vy]
	p           *mat.Dense    // 4x4 covariance
	thetaDeg    float64
	lastNanos   int64
}

// NewPoseEstimator creates an uninitialised pose filter. The first Update
// seeds the state directly.
func NewPoseEstimator(cfg EstimatorConfig) *PoseEstimator {
	if cfg.HeadingGain <= 0 || cfg.HeadingGain > 1 {
		cfg.HeadingGain = DefaultEstimatorConfig().HeadingGain
	}
	return &PoseEstimator{
		config: cfg,
		x:      mat.NewVecDense(4, nil),
		p:      mat.NewDense(4, 4, nil),
	}
}

// Update feeds one odometry pose fix (metres, degrees) taken at unixNanos
// into the filter.
func (e *PoseEstimator) Update(x, y, thetaDeg float64, unixNanos int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		e.x.SetVec(0, x)
		e.x.SetVec(1, y)
		e.x.SetVec(2, 0)
		e.x.SetVec(3, 0)
		for i := 0; i < 4; i++ {
			e.p.Set(i, i, 1.0)
		}
		e.thetaDeg = nav.NormalizeAngle(thetaDeg)
		e.lastNanos = unixNanos
		e.initialized = true
		return nil
	}

	dt := float64(unixNanos-e.lastNanos) / 1e9
	if dt < 0 {
		return fmt.Errorf("estimator: pose fix is %.3fs older than the previous one", -dt)
	}
	e.lastNanos = unixNanos
	e.predict(dt)

	// Measurement update: H = [I2 0], R = σ² I2.
	h := mat.NewDense(2, 4, []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
	})
	r := mat.NewDense(2, 2, []float64{
		e.config.MeasurementNoise, 0,
		0, e.config.MeasurementNoise,
	})

	// Innovation y = z - Hx.
	innov := mat.NewVecDense(2, []float64{
		x - e.x.AtVec(0),
		y - e.x.AtVec(1),
	})

	// S = H P Hᵀ + R
	var pht mat.Dense
	pht.Mul(e.p, h.T())
	var s mat.Dense
	s.Mul(h, &pht)
	s.Add(&s, r)

	var sInv mat.Dense
	if err := sInv.Inverse(&s); err != nil {
		return fmt.Errorf("estimator: innovation covariance singular: %w", err)
	}

	// K = P Hᵀ S⁻¹
	var k mat.Dense
	k.Mul(&pht, &sInv)

	// x = x + K y
	var corr mat.VecDense
	corr.MulVec(&k, innov)
	e.x.AddVec(e.x, &corr)

	// P = (I - K H) P
	var kh mat.Dense
	kh.Mul(&k, h)
	eye := identity(4)
	var ikh mat.Dense
	ikh.Sub(eye, &kh)
	var newP mat.Dense
	newP.Mul(&ikh, e.p)
	e.p.Copy(&newP)

	// Heading: wrapped first-order fusion.
	dTheta := nav.NormalizeAngle(thetaDeg - e.thetaDeg)
	e.thetaDeg = nav.NormalizeAngle(e.thetaDeg + e.config.HeadingGain*dTheta)
	return nil
}

// predict advances the state dt seconds under the constant-velocity model.
// Caller holds the lock.
func (e *PoseEstimator) predict(dt float64) {
	f := mat.NewDense(4, 4, []float64{
		1, 0, dt, 0,
		0, 1, 0, dt,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})

	var fx mat.VecDense
	fx.MulVec(f, e.x)
	e.x.CopyVec(&fx)

	// P = F P Fᵀ + Q
	var fp mat.Dense
	fp.Mul(f, e.p)
	var fpft mat.Dense
	fpft.Mul(&fp, f.T())

	q := mat.NewDense(4, 4, []float64{
		e.config.ProcessNoisePos * dt, 0, 0, 0,
		0, e.config.ProcessNoisePos * dt, 0, 0,
		0, 0, e.config.ProcessNoiseVel * dt, 0,
		0, 0, 0, e.config.ProcessNoiseVel * dt,
	})
	fpft.Add(&fpft, q)
	e.p.Copy(&fpft)
}

// Estimate returns the current belief. Before the first fix it returns the
// zero estimate.
func (e *PoseEstimator) Estimate() Estimate {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return Estimate{}
	}
	return Estimate{
		Pose: nav.Pose{
			X:        e.x.AtVec(0),
			Y:        e.x.AtVec(1),
			ThetaDeg: e.thetaDeg,
		},
		VX:        e.x.AtVec(2),
		VY:        e.x.AtVec(3),
		UnixNanos: e.lastNanos,
	}
}

// SpeedMps returns the current speed estimate.
func (e *PoseEstimator) SpeedMps() float64 {
	est := e.Estimate()
	return math.Hypot(est.VX, est.VY)
}

// Reset discards all filter state.
func (e *PoseEstimator) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.initialized = false
	e.x.Zero()
	e.p.Zero()
	e.thetaDeg = 0
	e.lastNanos = 0
}

func identity(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}
