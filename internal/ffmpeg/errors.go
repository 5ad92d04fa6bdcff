package ffmpeg

import "regexp"

// Pre-compiled regexes for classifying ffmpeg stderr into short reasons
// attached to ExternalToolError. Checked in order; the first match wins.
var stderrReasons = []struct {
	re     *regexp.Regexp
	reason string
}{
	{regexp.MustCompile(`(?i)No NVENC capable devices found|Cannot load libnvidia-encode|OpenEncodeSessionEx failed`), "nvenc unavailable"},
	{regexp.MustCompile(`Unknown encoder|Encoder not found`), "encoder not available"},
	{regexp.MustCompile(`No such file or directory`), "file not found"},
	{regexp.MustCompile(`Permission denied`), "permission denied"},
	{regexp.MustCompile(`No space left on device`), "disk full"},
	{regexp.MustCompile(`Invalid data found when processing input|moov atom not found`), "invalid or corrupt input"},
	{regexp.MustCompile(`Output file (#\d+ )?does not contain any stream|Output file is empty`), "empty output"},
	{regexp.MustCompile(`(?i)Impossible to open '.*'|Unsafe file name`), "concat list rejected"},
}

// Classify returns a short reason for a failed ffmpeg run, or "" when the
// stderr matches no known pattern.
func Classify(stderr string) string {
	for _, r := range stderrReasons {
		if r.re.MatchString(stderr) {
			return r.reason
		}
	}
	return ""
}
