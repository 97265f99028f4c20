package codes

// ErrorCodes maps toolchain and wrapper process exit codes to their descriptions
var ErrorCodes = map[int]string{
	0:   "Success",
	1:   "General failure",
	2:   "Misuse of command or compile errors",
	124: "Timed out",
	126: "Command found but not executable",
	127: "Command not found",
	130: "Interrupted",
	134: "Aborted (SIGABRT)",
	137: "Killed (SIGKILL)",
	139: "Segmentation fault (SIGSEGV)",
	143: "Terminated (SIGTERM)",
}

// Segfault is the shell convention exit status for a process killed by SIGSEGV
const Segfault = 139

// IsSuccess returns true if the exit code indicates success
func IsSuccess(code int) bool {
	return code == 0
}

// IsSegfault returns true if the exit code reports a segmentation fault
func IsSegfault(code int) bool {
	return code == Segfault
}

// GetErrorMessage returns the error message for a given exit code, or a generic message if unknown
func GetErrorMessage(code int) string {
	if msg, ok := ErrorCodes[code]; ok {
		return msg
	}

	return "Unknown error"
}
