package station

// StepResult reports what changed during one simulation step.
type StepResult struct {
	Completed []uint32
	Stats     Stats
}

// Step runs one tick: crew work first so completed builds already count in
// this tick's economy.
func (s *Station) Step(dt float64) StepResult {
	completed := s.TickCrew(dt)
	return StepResult{Completed: completed, Stats: s.ComputeStats(dt)}
}
