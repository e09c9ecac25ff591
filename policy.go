package papercache

import (
	"fmt"
	"strconv"
	"strings"
)

// PolicyKind identifies one of the eviction-policy families a Cache can run.
type PolicyKind uint8

const (
	Auto PolicyKind = iota
	Lfu
	Fifo
	Clock
	Sieve
	Lru
	Mru
	TwoQ
	Arc
	S3Fifo
)

// Policy is the text-form-round-trippable description of an eviction policy,
// including the parameters of the parameterized variants (2Q, S3-FIFO).
type Policy struct {
	Kind  PolicyKind
	KIn   float64 // 2Q only
	KOut  float64 // 2Q only
	Ratio float64 // S3-FIFO only
}

func NewTwoQ(kIn, kOut float64) Policy { return Policy{Kind: TwoQ, KIn: kIn, KOut: kOut} }
func NewS3Fifo(ratio float64) Policy   { return Policy{Kind: S3Fifo, Ratio: ratio} }

func (p Policy) String() string {
	switch p.Kind {
	case Auto:
		return "auto"
	case Lfu:
		return "lfu"
	case Fifo:
		return "fifo"
	case Clock:
		return "clock"
	case Sieve:
		return "sieve"
	case Lru:
		return "lru"
	case Mru:
		return "mru"
	case TwoQ:
		return fmt.Sprintf("2q-%s-%s", trimFloat(p.KIn), trimFloat(p.KOut))
	case Arc:
		return "arc"
	case S3Fifo:
		return fmt.Sprintf("s3-fifo-%s", trimFloat(p.Ratio))
	default:
		return "unknown"
	}
}

func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Equal reports whether two policies name the same concrete eviction
// strategy, including matching parameters for parameterized variants.
func (p Policy) Equal(other Policy) bool {
	if p.Kind != other.Kind {
		return false
	}
	switch p.Kind {
	case TwoQ:
		return p.KIn == other.KIn && p.KOut == other.KOut
	case S3Fifo:
		return p.Ratio == other.Ratio
	default:
		return true
	}
}

// validate checks the configuration parameters of parameterized policies.
func (p Policy) validate() error {
	switch p.Kind {
	case TwoQ:
		if p.KIn < 0 || p.KOut < 0 || p.KIn+p.KOut > 1 {
			return ErrInvalidPolicy
		}
	case S3Fifo:
		if p.Ratio < 0 || p.Ratio > 1 {
			return ErrInvalidPolicy
		}
	}
	return nil
}

// ParsePolicy parses the external text form:
//
//	auto | lfu | fifo | clock | sieve | lru | mru | 2q-<kin>-<kout> | s3-fifo-<ratio> | arc
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "auto":
		return Policy{Kind: Auto}, nil
	case "lfu":
		return Policy{Kind: Lfu}, nil
	case "fifo":
		return Policy{Kind: Fifo}, nil
	case "clock":
		return Policy{Kind: Clock}, nil
	case "sieve":
		return Policy{Kind: Sieve}, nil
	case "lru":
		return Policy{Kind: Lru}, nil
	case "mru":
		return Policy{Kind: Mru}, nil
	case "arc":
		return Policy{Kind: Arc}, nil
	}

	if strings.HasPrefix(s, "2q-") {
		parts := strings.Split(strings.TrimPrefix(s, "2q-"), "-")
		if len(parts) != 2 {
			return Policy{}, ErrInvalidPolicy
		}
		kIn, err1 := strconv.ParseFloat(parts[0], 64)
		kOut, err2 := strconv.ParseFloat(parts[1], 64)
		if err1 != nil || err2 != nil {
			return Policy{}, ErrInvalidPolicy
		}
		p := NewTwoQ(kIn, kOut)
		if err := p.validate(); err != nil {
			return Policy{}, err
		}
		return p, nil
	}

	if strings.HasPrefix(s, "s3-fifo-") {
		ratio, err := strconv.ParseFloat(strings.TrimPrefix(s, "s3-fifo-"), 64)
		if err != nil {
			return Policy{}, ErrInvalidPolicy
		}
		p := NewS3Fifo(ratio)
		if err := p.validate(); err != nil {
			return Policy{}, err
		}
		return p, nil
	}

	return Policy{}, ErrInvalidPolicy
}
