package utils

import (
	"strconv"
)

// ProgramID parses the numeric id at the end of a program name
// (function550013 -> 550013). Names without a trailing number have no id.
func ProgramID(name string) (int, bool) {
	i := len(name)
	for i > 0 && name[i-1] >= '0' && name[i-1] <= '9' {
		i--
	}

	digits := name[i:]
	if digits == "" {
		return 0, false
	}

	id, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}

	return id, true
}
