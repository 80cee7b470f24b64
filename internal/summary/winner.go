package summary

// Winner is the outcome of a most-common lookup: either a SingleWinner or TiedWinners.
type Winner interface {
	// Leaders returns the winning names and their shared count.
	Leaders() (names []string, count int)

	winner()
}

// SingleWinner is a name holding the maximum count alone.
type SingleWinner struct {
	Name  string
	Count int
}

// Leaders implements Winner.
func (w SingleWinner) Leaders() ([]string, int) {
	return []string{w.Name}, w.Count
}

func (SingleWinner) winner() {}

// TiedWinners are several names sharing the maximum count, in name order.
type TiedWinners struct {
	Names []string
	Count int
}

// Leaders implements Winner.
func (w TiedWinners) Leaders() ([]string, int) {
	return w.Names, w.Count
}

func (TiedWinners) winner() {}

// MostCommon returns the entries of counts sharing the highest count.
// counts must be sorted as Aggregate sorts them. It returns nil for no counts.
func MostCommon(counts []Count) Winner {
	if len(counts) == 0 {
		return nil
	}

	top := counts[0].N
	var names []string
	for _, c := range counts {
		if c.N != top {
			break
		}
		names = append(names, c.Name)
	}

	if len(names) == 1 {
		return SingleWinner{Name: names[0], Count: top}
	}
	return TiedWinners{Names: names, Count: top}
}
