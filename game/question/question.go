package question

import (
	"math"
	"strings"
)

// Op tags the kind of problem a question poses.
type Op string

const (
	OpAdd     Op = "+"
	OpSub     Op = "-"
	OpMul     Op = "×"
	OpDiv     Op = "÷"
	OpMix3    Op = "mix3"
	OpMix4    Op = "mix4"
	OpUnknown Op = "unknown"
	OpFracCmp Op = "frac_cmp"
	OpFracAdd Op = "frac_add"
)

// AllOps lists every operator the generator understands.
var AllOps = []Op{OpAdd, OpSub, OpMul, OpDiv, OpMix3, OpMix4, OpUnknown, OpFracCmp, OpFracAdd}

// Valid reports whether op is a known operator.
func (op Op) Valid() bool {
	for _, o := range AllOps {
		if o == op {
			return true
		}
	}
	return false
}

// Move is the question-generation contract of a monster move.
type Move struct {
	Range [2]int `json:"range"`
	Ops   []Op   `json:"ops"`
}

// Question is one arithmetic problem with exactly four choices.
type Question struct {
	Display string   `json:"display"`
	Op      Op       `json:"op"`
	Answer  Value    `json:"answer"`
	Choices [4]Value `json:"choices"`
	Steps   []string `json:"steps,omitempty"`
}

// Correct reports whether v answers the question.
func (q Question) Correct(v Value) bool { return q.Answer.Equal(v) }

// AnswerIndex returns the position of the answer among the choices, or -1.
func (q Question) AnswerIndex() int {
	for i, c := range q.Choices {
		if c.Equal(q.Answer) {
			return i
		}
	}
	return -1
}

// Source is the randomness the generator consumes.
type Source interface {
	Rand() float64
	RandInt(min, max int) int
	Chance(p float64) bool
	PickIndex(n int) int
}

// ScaleRange applies a difficulty multiplier to a move range.
// Both bounds stay >= 1 and hi never drops below lo.
func ScaleRange(r [2]int, diff float64) (lo, hi int) {
	if diff <= 0 {
		diff = 1
	}
	lo = int(math.Round(float64(r[0]) * diff))
	if lo < 1 {
		lo = 1
	}
	hi = int(math.Round(float64(r[1]) * diff))
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

const spaceCap = 1_000_000

// EstimateSpace approximates how many distinct questions the ops can
// produce for the range [lo,hi].
func EstimateSpace(lo, hi int, ops []Op) int {
	n := hi - lo + 1
	if n < 1 {
		n = 1
	}
	total := 0
	for _, op := range ops {
		var s int
		switch op {
		case OpAdd, OpMul, OpDiv:
			s = n * n
		case OpSub:
			s = n * (n + 1) / 2
		case OpUnknown:
			s = 4 * n * n
		case OpMix3:
			s = 9 * n * n * n
		case OpMix4:
			s = spaceCap
		case OpFracCmp, OpFracAdd:
			f := fractionCount(fracMaxDen(hi))
			s = f * f
		}
		total += s
		if total >= spaceCap {
			return spaceCap
		}
	}
	return total
}

// HistorySize is the anti-repeat window for a combination space.
func HistorySize(space int) int {
	h := space / 2
	if h > 8 {
		h = 8
	}
	if h < 0 {
		h = 0
	}
	return h
}

func fractionCount(maxDen int) int {
	c := 0
	for d := 2; d <= maxDen; d++ {
		c += d - 1
	}
	return c
}

func fracMaxDen(hi int) int {
	switch {
	case hi < 3:
		return 3
	case hi > 12:
		return 12
	default:
		return hi
	}
}

func opsKey(ops []Op) string {
	s := make([]string, len(ops))
	for i, o := range ops {
		s[i] = string(o)
	}
	return strings.Join(s, ",")
}
