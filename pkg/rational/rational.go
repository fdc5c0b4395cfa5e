// Package rational provides exact rational numbers for frame rates and
// durations.
package rational

import "fmt"

// Rational represents a rational number (numerator/denominator).
// Values produced by this package are always reduced with a positive
// denominator, so two equal values compare equal with ==.
type Rational struct {
	Num int64 // Numerator
	Den int64 // Denominator
}

// New creates a reduced rational number. A zero denominator is corrected to 1.
func New(num, den int64) Rational {
	if den == 0 {
		den = 1
	}
	if den < 0 {
		num, den = -num, -den
	}
	if g := gcd(abs(num), den); g > 1 {
		num /= g
		den /= g
	}
	return Rational{Num: num, Den: den}
}

// FromInt returns n/1.
func FromInt(n int64) Rational {
	return Rational{Num: n, Den: 1}
}

// Zero is 0/1.
var Zero = Rational{Num: 0, Den: 1}

// Add returns r + o.
func (r Rational) Add(o Rational) Rational {
	r, o = r.norm(), o.norm()
	g := gcd(r.Den, o.Den)
	// r.Den/g * o.Den is the lcm; keeps intermediates small for 1001-based rates
	return New(r.Num*(o.Den/g)+o.Num*(r.Den/g), r.Den/g*o.Den)
}

// Mul returns r * o.
func (r Rational) Mul(o Rational) Rational {
	r, o = r.norm(), o.norm()
	g1 := gcd(abs(r.Num), o.Den)
	g2 := gcd(abs(o.Num), r.Den)
	return New((r.Num/g1)*(o.Num/g2), (r.Den/g2)*(o.Den/g1))
}

// MulInt returns r * n.
func (r Rational) MulInt(n int64) Rational {
	return r.Mul(FromInt(n))
}

// Invert returns the inverted rational (den/num). Inverting zero yields zero.
func (r Rational) Invert() Rational {
	if r.Num == 0 {
		return Zero
	}
	return New(r.Den, r.Num)
}

// Equal reports whether r and o denote the same value.
func (r Rational) Equal(o Rational) bool {
	r, o = r.norm(), o.norm()
	return r == o
}

// IsZero reports whether the value is zero.
func (r Rational) IsZero() bool {
	return r.Num == 0
}

// Float64 returns the floating point representation
func (r Rational) Float64() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// Float32 returns a single precision approximation.
func (r Rational) Float32() float32 {
	if r.Den == 0 {
		return 0
	}
	return float32(r.Num) / float32(r.Den)
}

// Floor returns the largest integer not greater than r.
func (r Rational) Floor() int64 {
	r = r.norm()
	q := r.Num / r.Den
	if r.Num%r.Den != 0 && r.Num < 0 {
		q--
	}
	return q
}

// String formats the value as "num/den".
func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

func (r Rational) norm() Rational {
	if r.Den == 0 {
		return Rational{Num: r.Num, Den: 1}
	}
	return New(r.Num, r.Den)
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 1
	}
	return a
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
