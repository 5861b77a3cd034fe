package security

import (
	"fmt"
	"regexp"
	"strings"
)

// CommandValidator screens a shell command the Response Parser extracted
// from a model's ===RUN:===/===BACKGROUND:=== block before the Agentic
// Executor or DAG Orchestrator ever runs it — an exact blocklist, a
// substring blocklist, and a set of regexes for destructive or
// persistence-establishing shell idioms a model might otherwise be talked
// into generating.
type CommandValidator struct {
	blockedCommands   []string
	blockedSubstrings []string
	blockedPatterns   []*regexp.Regexp
}

// exactBlockedCommands are whole-command matches: classic fork bombs in
// their common spacing variants.
var exactBlockedCommands = []string{
	":(){:|:&};:",
	":(){ :|:& };:",
}

// defaultBlockedSubstrings flags a command containing any of these,
// regardless of surrounding syntax.
var defaultBlockedSubstrings = []string{
	// destructive filesystem operations
	"rm -rf /", "rm -rf /*", "rm -rf ~", "rm -rf $HOME", "rm -rf ${HOME}",
	"rm -fr /", "rm -fr /*",
	// raw disk operations
	"mkfs.", "mkfs ",
	"> /dev/sda", "> /dev/nvme", "> /dev/hd", "> /dev/vd",
	"dd if=/dev/zero of=/dev/sd", "dd if=/dev/zero of=/dev/nvme", "dd if=/dev/zero of=/dev/hd", "dd if=/dev/zero of=/dev/vd",
	"dd if=/dev/urandom of=/dev/sd", "dd if=/dev/urandom of=/dev/nvme", "dd if=/dev/random of=/dev/sd",
	// permission attacks
	"chmod -R 777 /", "chmod 777 /", "chown -R root /",
	// reverse shells
	"nc -e", "nc -c", "ncat -e", "ncat -c",
	"bash -i >& /dev/tcp", "bash -i >& /dev/udp", "/dev/tcp/", "/dev/udp/",
	// credential/key exfiltration
	"/etc/shadow", "/etc/passwd",
	".ssh/id_rsa", ".ssh/id_ed25519", ".ssh/id_ecdsa", ".ssh/id_dsa",
	".aws/credentials", ".kube/config", ".gnupg/",
	"mimikatz", "hashdump", "secretsdump",
	// kernel/boot modification
	"insmod ", "rmmod ", "modprobe ", "/proc/sys", "/sys/kernel",
	"/boot/", "grub-install", "update-grub",
}

// defaultBlockedPatterns catches the same hazards in a form the substring
// list can't: variable expansion, piping, and obfuscation.
var defaultBlockedPatterns = []string{
	`:\s*\(\s*\)\s*\{`,                // :(){
	`\$\{?0\}?\s*[&|]\s*\$\{?0\}?`,    // $0 & $0 / $0 | $0
	`while\s+true\s*;\s*do.*&`,        // while true; do ... &
	`(?i)fork\s*bomb`,
	`\byes\s*\|\s*sh`,
	`\beval\s+\$\(`,
	`\bexec\s+\$\{?0\}?`,

	`rm\s+(-[rRf]+\s+)+/`,  // rm -rf / and variants
	`rm\s+(-[rRf]+\s+)+\$`, // rm -rf $VAR

	`dd\s+.*of=/dev/[snhv]d`,
	`dd\s+.*of=/dev/nvme`,
	`dd\s+.*of=/dev/[snhv]d[a-z]$`, // overwriting a whole disk, no partition

	`(?i)(wget|curl)\s+.*\|\s*(ba)?sh`, // downloaded script piped straight to a shell
	`(?i)(wget|curl)\s+-[^|]*\|\s*(ba)?sh`,
	`base64\s+-d.*\|\s*(ba)?sh`,

	`python[23]?\s+-c\s+['"].*socket.*exec`, // one-liner reverse shells
	`perl\s+-e\s+['"].*socket.*exec`,

	`mount\s+.*-o\s+.*remount.*rw\s+/`,

	`echo\s+.*>>\s*/etc/cron`, // persistence via cron/systemd/authorized_keys
	`echo\s+.*>>\s*/var/spool/cron`,
	`echo\s+.*>>\s*.*authorized_keys`,
	`cat\s+.*>\s*/etc/systemd/system/`,

	`>\s*~/\..*history`, // covering tracks
	`history\s+-c`,
	`unset\s+HISTFILE`,

	`LD_PRELOAD.*\.so`, // process hiding

	`\\[0-7]{3}`,             // \OOO octal escapes
	`(?i)printf\s+.*\\`,      // printf with escapes, often used to obfuscate a payload

	`[;&|]\s*(ba)?sh`, // shell chained onto an unrelated command
	`(?i)eval\s+.*(base64|curl|wget|nc\b)`,
	`>\s*/dev/(tcp|udp)/`,
}

// NewCommandValidator builds a validator with the default blocklist. Call
// AddBlockedSubstring on the result to add caller-specific entries.
func NewCommandValidator() *CommandValidator {
	cv := &CommandValidator{
		blockedCommands:   append([]string(nil), exactBlockedCommands...),
		blockedSubstrings: append([]string(nil), defaultBlockedSubstrings...),
	}
	cv.blockedPatterns = make([]*regexp.Regexp, 0, len(defaultBlockedPatterns))
	for _, p := range defaultBlockedPatterns {
		cv.blockedPatterns = append(cv.blockedPatterns, regexp.MustCompile(p))
	}
	return cv
}

// ValidationResult is what Validate returns: whether the command passed,
// and which rule rejected it if not.
type ValidationResult struct {
	Valid   bool
	Reason  string
	Pattern string
}

// Validate reports whether command is safe to run.
func (cv *CommandValidator) Validate(command string) ValidationResult {
	if command == "" {
		return ValidationResult{Valid: false, Reason: "empty command"}
	}

	lower := strings.ToLower(command)

	for _, blocked := range cv.blockedCommands {
		if command == blocked || lower == strings.ToLower(blocked) {
			return ValidationResult{Valid: false, Reason: "blocked command", Pattern: blocked}
		}
	}
	for _, substr := range cv.blockedSubstrings {
		if strings.Contains(lower, strings.ToLower(substr)) {
			return ValidationResult{Valid: false, Reason: fmt.Sprintf("contains blocked pattern: %s", substr), Pattern: substr}
		}
	}
	for _, pattern := range cv.blockedPatterns {
		if pattern.MatchString(command) {
			return ValidationResult{Valid: false, Reason: "matches dangerous pattern", Pattern: pattern.String()}
		}
	}

	return ValidationResult{Valid: true, Reason: "command passed validation"}
}

// AddBlockedSubstring extends the substring blocklist with a caller-specific
// entry, beyond the defaults NewCommandValidator already compiled in.
func (cv *CommandValidator) AddBlockedSubstring(substr string) {
	cv.blockedSubstrings = append(cv.blockedSubstrings, substr)
}
