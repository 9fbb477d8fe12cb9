package rules

// Schedule reports whether threats move when the game advances from tick.
type Schedule func(tick int) bool

// EveryFifth is the observed server rule: threats move on ticks 6, 11, 16...
func EveryFifth(tick int) bool {
	return tick > 1 && (tick-1)%5 == 0
}

// scheduledTicks covers the longest game the server runs. Later ticks use
// a period of 1, so threats move on all of them.
const scheduledTicks = 2000

// accelerated[i] is the move flag for tick i+2. The server counts ticks
// since the last move and moves once the count reaches the current period,
// so each period change keeps the phase of the previous one.
var accelerated = func() []bool {
	out := make([]bool, scheduledTicks)
	since := 0
	for i := range out {
		since++
		if since >= period(i) {
			since = 0
			out[i] = true
		}
	}
	return out
}()

// Accelerating follows the server's late-game speed-up: a period of 5 up to
// tick 300, then 4, 3, 2 and finally 1 after ticks 300, 500, 700 and 900.
func Accelerating(tick int) bool {
	i := tick - 2
	switch {
	case i < 0:
		return false
	case i >= len(accelerated):
		return true
	}
	return accelerated[i]
}

func period(tick int) int {
	switch {
	case tick <= 300:
		return 5
	case tick <= 500:
		return 4
	case tick <= 700:
		return 3
	case tick <= 900:
		return 2
	}
	return 1
}
