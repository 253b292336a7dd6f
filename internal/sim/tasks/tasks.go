package tasks

type Kind string

const (
	KindBuildModule    Kind = "BUILD_MODULE"
	KindBuildExtension Kind = "BUILD_EXTENSION"
)

// BuildTask describes the work a building crew member is doing this tick.
type BuildTask struct {
	Kind      Kind
	SubjectID uint32
	Rate      float64 // progress per simulated second
}

// Advance applies rate*dt to progress, clamping to 1. done is true once the
// subject is complete. Progress never decreases.
func Advance(progress, rate, dt float64) (next float64, done bool) {
	if progress >= 1 {
		return 1, true
	}
	step := rate * dt
	if step < 0 {
		step = 0
	}
	next = progress + step
	if next >= 1 {
		return 1, true
	}
	if next < 0 {
		next = 0
	}
	return next, false
}
