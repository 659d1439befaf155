package trainer

// Callback receives lifecycle notifications from the training loop with
// the global timestep count. Step runs after every vectorized
// environment step, on the loop goroutine.
type Callback interface {
	TrainingStart(timesteps int64) error
	Step(timesteps int64) error
	TrainingEnd(timesteps int64) error
}

// CallbackList fans notifications out in order, stopping at the first
// error.
type CallbackList []Callback

func (l CallbackList) TrainingStart(timesteps int64) error {
	for _, cb := range l {
		if err := cb.TrainingStart(timesteps); err != nil {
			return err
		}
	}
	return nil
}

func (l CallbackList) Step(timesteps int64) error {
	for _, cb := range l {
		if err := cb.Step(timesteps); err != nil {
			return err
		}
	}
	return nil
}

func (l CallbackList) TrainingEnd(timesteps int64) error {
	for _, cb := range l {
		if err := cb.TrainingEnd(timesteps); err != nil {
			return err
		}
	}
	return nil
}
