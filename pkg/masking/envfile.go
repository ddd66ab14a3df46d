package masking

import (
	"regexp"
	"strings"
)

// MaskedEnvValue is the replacement string for masked dotenv-style values.
const MaskedEnvValue = "[MASKED_ENV_VALUE]"

var envAssignmentPattern = regexp.MustCompile(`(?m)^\s*([A-Z][A-Z0-9_]*)\s*=\s*(.+)$`)

// EnvFileMasker masks the value half of dotenv-style KEY=VALUE assignments.
// Source snippets occasionally embed .env.example content or inline
// configuration blocks; regex patterns like "api_key" or "token" only catch
// names that match their own keyword, so a generic env-line masker covers
// arbitrary key names (DATABASE_PASSWORD, STRIPE_SECRET, ...).
type EnvFileMasker struct{}

// Name returns the unique identifier for this masker.
func (m *EnvFileMasker) Name() string { return "env_file" }

// AppliesTo requires at least two KEY=VALUE lines before engaging —
// a single assignment is usually just a code snippet, not a config block.
func (m *EnvFileMasker) AppliesTo(data string) bool {
	return len(envAssignmentPattern.FindAllStringIndex(data, 2)) >= 2
}

// Mask replaces the value half of every KEY=VALUE line, leaving keys intact
// so the shape of the config block is still visible to the inference model.
func (m *EnvFileMasker) Mask(data string) string {
	return envAssignmentPattern.ReplaceAllStringFunc(data, func(line string) string {
		parts := envAssignmentPattern.FindStringSubmatch(line)
		if len(parts) != 3 {
			return line
		}
		key := parts[1]
		prefix := line[:strings.Index(line, key)]
		return prefix + key + "=" + MaskedEnvValue
	})
}
