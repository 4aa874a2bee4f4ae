package device

import (
	"math"
	"runtime"
	"strconv"
	"strings"
)

// Default limits.
const (
	// Buffer strides must stay below this value.
	DefaultMaxStride = math.MaxInt32

	// Default packed leaf width.
	DefaultLeafWidth = 4
)

// Options control device behaviour. They are parsed from an embree style
// configuration string by New and may be adjusted through SetParameter.
type Options struct {
	// Number of build worker goroutines.
	Threads int

	// Instruction set used to select the available packet widths.
	ISA ISA

	// Log verbosity (0 = quiet).
	Verbose int

	// Primitive capacity (M) of packed leaf blocks.
	LeafWidth int

	// Maximum buffer stride in bytes.
	MaxStride int
}

// DefaultOptions returns the options used for an empty config string.
func DefaultOptions() Options {
	return Options{
		Threads:   runtime.GOMAXPROCS(0),
		ISA:       DetectISA(),
		LeafWidth: DefaultLeafWidth,
		MaxStride: DefaultMaxStride,
	}
}

// ParseConfig parses a comma separated list of key=value pairs, e.g.
// "threads=4,isa=avx,verbose=1". Unknown keys are rejected.
func ParseConfig(cfg string) (Options, error) {
	opts := DefaultOptions()
	hostISA := opts.ISA

	for _, field := range strings.Split(cfg, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}

		key, value, found := strings.Cut(field, "=")
		if !found {
			return opts, Errorf(InvalidArgument, "malformed config entry %q", field)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "threads":
			n, err := parsePositive(key, value)
			if err != nil {
				return opts, err
			}
			opts.Threads = n
		case "isa":
			if value == "auto" {
				opts.ISA = hostISA
				continue
			}
			isa, ok := ParseISA(value)
			if !ok {
				return opts, Errorf(InvalidArgument, "unknown isa %q", value)
			}
			if isa > hostISA {
				return opts, Errorf(UnsupportedCPU, "isa %s is not supported by this cpu (max %s)", isa, hostISA)
			}
			opts.ISA = isa
		case "verbose":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return opts, Errorf(InvalidArgument, "invalid value %q for verbose", value)
			}
			opts.Verbose = n
		case "leaf_width":
			n, err := parsePositive(key, value)
			if err != nil {
				return opts, err
			}
			if n != 4 && n != 8 {
				return opts, Errorf(InvalidArgument, "leaf_width must be 4 or 8; got %d", n)
			}
			opts.LeafWidth = n
		case "max_stride":
			n, err := parsePositive(key, value)
			if err != nil {
				return opts, err
			}
			opts.MaxStride = n
		default:
			return opts, Errorf(InvalidArgument, "unknown config key %q", key)
		}
	}

	return opts, nil
}

func parsePositive(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return 0, Errorf(InvalidArgument, "invalid value %q for %s", value, key)
	}
	return n, nil
}
