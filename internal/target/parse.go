package target

import "strings"

// Prefix is the optional leading tag of a target string.
const Prefix = "llvm"

// DefaultTripleKeyword asks for the host's default triple.
const DefaultTripleKeyword = "default"

// GenericCPU is substituted when no -mcpu is given.
const GenericCPU = "generic"

// Tokenize drops an exact leading "llvm" and splits the rest on whitespace.
// The prefix is removed even when no separator follows it.
func Tokenize(raw string) []string {
	rest, _ := strings.CutPrefix(raw, Prefix)
	return strings.Fields(rest)
}

// ParseTokens decodes option tokens into a Descriptor. The triple is left
// as written; see ParseOptions for default-triple substitution.
//
// Every option must use the key=value form. A bare key is rejected with
// KindMissingValue even when another token follows it.
func ParseTokens(tokens []string) (Descriptor, error) {
	d := Descriptor{Options: DefaultOptions()}
	for _, tok := range tokens {
		if tok == "--system-lib" || tok == "-system-lib" {
			continue
		}
		key, value, ok := strings.Cut(tok, "=")
		if !ok {
			return Descriptor{}, &Error{Kind: KindMissingValue, Token: tok}
		}
		if value == "" {
			return Descriptor{}, &Error{Kind: KindMissingValue, Token: tok}
		}
		switch key {
		case "-target", "-mtriple":
			d.Triple = value
		case "-mcpu":
			d.CPU = value
		case "-mattr":
			d.Attributes = value
		case "-mfloat-abi":
			abi, valid := ParseFloatABI(value)
			if !valid {
				return Descriptor{}, &Error{Kind: KindInvalidFloatABI, Token: tok, Value: value}
			}
			d.Options.FloatABI = abi
		case "-device", "-libs", "-model":
			// accepted, no effect on code generation
		default:
			return Descriptor{}, &Error{Kind: KindUnknownOption, Token: key, Value: value}
		}
	}
	return d, nil
}

// ParseOptions parses raw and substitutes defaultTriple() for an empty or
// "default" triple. defaultTriple may be nil, in which case the triple is
// left empty.
func ParseOptions(raw string, defaultTriple func() string) (Descriptor, error) {
	d, err := ParseTokens(Tokenize(raw))
	if err != nil {
		return Descriptor{}, err
	}
	d.Triple = ResolveTriple(d.Triple, defaultTriple)
	return d, nil
}

// ResolveTriple returns triple, or defaultTriple() when triple is empty or
// the "default" keyword.
func ResolveTriple(triple string, defaultTriple func() string) string {
	if triple != "" && triple != DefaultTripleKeyword {
		return triple
	}
	if defaultTriple == nil {
		return ""
	}
	return defaultTriple()
}

// ResolveCPU returns cpu, or GenericCPU when cpu is empty.
func ResolveCPU(cpu string) string {
	if cpu == "" {
		return GenericCPU
	}
	return cpu
}
