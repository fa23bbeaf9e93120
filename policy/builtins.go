package policy

import (
	"fmt"
	"math"
	"math/big"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

const (
	// maxRoundDigits is the largest ndigits for which 10**ndigits is finite
	maxRoundDigits = 308
	// maxPowBits bounds the size of an exact integer power. The power is
	// computed in Go, where thread cancellation cannot interrupt it.
	maxPowBits = 1 << 20
)

// Arithmetic helpers learners expect from Python but Starlark's universe lacks.
var (
	builtinSum    = starlark.NewBuiltin("sum", sum)
	builtinRound  = starlark.NewBuiltin("round", round)
	builtinPow    = starlark.NewBuiltin("pow", pow)
	builtinDivmod = starlark.NewBuiltin("divmod", divmod)
)

func sum(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var iterable starlark.Iterable
	var start starlark.Value = starlark.MakeInt(0)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "iterable", &iterable, "start?", &start); err != nil {
		return nil, err
	}

	iter := iterable.Iterate()
	defer iter.Done()

	acc := start
	var x starlark.Value
	for iter.Next(&x) {
		next, err := starlark.Binary(syntax.PLUS, acc, x)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		acc = next
	}
	return acc, nil
}

func round(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var x starlark.Value
	var ndigits starlark.Value = starlark.None
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "number", &x, "ndigits?", &ndigits); err != nil {
		return nil, err
	}

	f, err := toFloat(b.Name(), x)
	if err != nil {
		return nil, err
	}

	if ndigits == starlark.None {
		if i, ok := x.(starlark.Int); ok {
			return i, nil
		}
		r := math.RoundToEven(f)
		if math.IsNaN(r) || math.IsInf(r, 0) || math.Abs(r) >= math.MaxInt64 {
			return nil, fmt.Errorf("%s: cannot convert %s to int", b.Name(), x)
		}
		return starlark.MakeInt64(int64(r)), nil
	}

	var digits int
	if err := starlark.AsInt(ndigits, &digits); err != nil {
		return nil, fmt.Errorf("%s: ndigits: %w", b.Name(), err)
	}
	switch {
	case digits > maxRoundDigits, math.IsNaN(f), math.IsInf(f, 0):
		return starlark.Float(f), nil
	case digits < -maxRoundDigits:
		return starlark.Float(math.Copysign(0, f)), nil
	}

	scale := math.Pow(10, float64(digits))
	scaled := f * scale
	if math.IsInf(scaled, 0) {
		return starlark.Float(f), nil
	}
	return starlark.Float(math.RoundToEven(scaled) / scale), nil
}

func pow(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var base, exp starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &base, &exp); err != nil {
		return nil, err
	}

	bi, baseIsInt := base.(starlark.Int)
	ei, expIsInt := exp.(starlark.Int)
	if baseIsInt && expIsInt && ei.Sign() >= 0 {
		n, ok := ei.Int64()
		if !ok {
			return nil, fmt.Errorf("%s: exponent too large", b.Name())
		}
		return intPow(b.Name(), bi, n)
	}

	bf, err := toFloat(b.Name(), base)
	if err != nil {
		return nil, err
	}
	ef, err := toFloat(b.Name(), exp)
	if err != nil {
		return nil, err
	}
	return starlark.Float(math.Pow(bf, ef)), nil
}

// intPow computes base**n by repeated squaring so large results stay exact.
// Results wider than maxPowBits are refused.
func intPow(fn string, base starlark.Int, n int64) (starlark.Value, error) {
	abs := new(big.Int).Abs(base.BigInt())
	if abs.Cmp(big.NewInt(1)) <= 0 {
		switch {
		case abs.Sign() == 0 && n > 0:
			return starlark.MakeInt(0), nil
		case base.Sign() < 0 && n%2 == 1:
			return starlark.MakeInt(-1), nil
		default:
			return starlark.MakeInt(1), nil
		}
	}

	// base**n has at least (bitlen-1)*n bits.
	if bits := int64(abs.BitLen() - 1); bits > 0 && n > maxPowBits/bits {
		return nil, fmt.Errorf("%s: result too large", fn)
	}

	var result starlark.Value = starlark.MakeInt(1)
	var square starlark.Value = base
	for n > 0 {
		if n&1 == 1 {
			next, err := starlark.Binary(syntax.STAR, result, square)
			if err != nil {
				return nil, err
			}
			result = next
		}
		n >>= 1
		if n > 0 {
			next, err := starlark.Binary(syntax.STAR, square, square)
			if err != nil {
				return nil, err
			}
			square = next
		}
	}
	return result, nil
}

func divmod(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var x, y starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &x, &y); err != nil {
		return nil, err
	}

	q, err := starlark.Binary(syntax.SLASHSLASH, x, y)
	if err != nil {
		return nil, err
	}
	r, err := starlark.Binary(syntax.PERCENT, x, y)
	if err != nil {
		return nil, err
	}
	return starlark.Tuple{q, r}, nil
}

func toFloat(fn string, x starlark.Value) (float64, error) {
	switch v := x.(type) {
	case starlark.Int:
		return float64(v.Float()), nil
	case starlark.Float:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("%s: got %s, want int or float", fn, x.Type())
	}
}
