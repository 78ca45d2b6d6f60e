package packager

import "strings"

// DefaultInputFlag introduces a run of input archives on the packager
// command line.
const DefaultInputFlag = "-injars"

// ParseInputArchives collects every argument that follows flag up to the
// next argument starting with "-". Each occurrence of flag starts a new run.
func ParseInputArchives(args []string, flag string) []string {
	var inputs []string
	collecting := false
	for _, arg := range args {
		switch {
		case arg == flag:
			collecting = true
		case strings.HasPrefix(arg, "-"):
			collecting = false
		case collecting:
			inputs = append(inputs, arg)
		}
	}
	return inputs
}
