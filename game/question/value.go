package question

import "strconv"

// Value is a reduced rational number. Integers have Den == 1.
type Value struct {
	Num int `json:"num"`
	Den int `json:"den"`
}

// Int returns the integer value n.
func Int(n int) Value { return Value{Num: n, Den: 1} }

// Frac returns num/den reduced, with a positive denominator.
// A zero denominator is treated as 1.
func Frac(num, den int) Value {
	if den == 0 {
		den = 1
	}
	if den < 0 {
		num, den = -num, -den
	}
	g := gcd(abs(num), den)
	if g > 1 {
		num /= g
		den /= g
	}
	return Value{Num: num, Den: den}
}

// IsInt reports whether v is a whole number.
func (v Value) IsInt() bool { return v.Den == 1 || v.Den == 0 }

// Float returns v as a float64.
func (v Value) Float() float64 {
	if v.Den == 0 {
		return float64(v.Num)
	}
	return float64(v.Num) / float64(v.Den)
}

// Less reports whether v < o.
func (v Value) Less(o Value) bool {
	return v.Num*o.den() < o.Num*v.den()
}

// Equal compares two values after normalisation.
func (v Value) Equal(o Value) bool {
	a, b := Frac(v.Num, v.den()), Frac(o.Num, o.den())
	return a == b
}

func (v Value) String() string {
	if v.IsInt() {
		return strconv.Itoa(v.Num)
	}
	return strconv.Itoa(v.Num) + "/" + strconv.Itoa(v.Den)
}

func (v Value) den() int {
	if v.Den == 0 {
		return 1
	}
	return v.Den
}

func add(a, b Value) Value {
	return Frac(a.Num*b.den()+b.Num*a.den(), a.den()*b.den())
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 1
	}
	return a
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
