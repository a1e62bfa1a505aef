package simulation

// Decider reports whether fresh genome material should be requested on this step.
type Decider func() bool

// EveryXSteps returns a Decider that fires on the first call and then on
// every x-th call after it. x <= 1 fires every time.
func EveryXSteps(x int) Decider {
	counter := -1
	return func() bool {
		if counter < 0 {
			counter = x
		}
		counter++
		if counter >= x {
			counter = 0
			return true
		}
		return false
	}
}
