package interpreter

// GasLimitSelector filters a candidate set of signed messages down to
// ones that fit within a block gas limit. Currently one implementation
// exists (cumulative sum), but the interpreter depends on the
// interface so additional selectors can be added without touching the
// prepare phase.
type GasLimitSelector interface {
	Select(candidates []SignedMessage, blockGasLimit uint64) []SignedMessage
}

// CumulativeGasSelector includes candidates in order, skipping any whose
// gas limit would push the cumulative total above blockGasLimit and
// continuing with the rest.
type CumulativeGasSelector struct{}

func (CumulativeGasSelector) Select(candidates []SignedMessage, blockGasLimit uint64) []SignedMessage {
	var selected []SignedMessage
	var used uint64
	for _, c := range candidates {
		if used+c.GasLimit > blockGasLimit {
			continue
		}
		used += c.GasLimit
		selected = append(selected, c)
	}
	return selected
}
