package secrets

// DefaultRules returns rules for credentials that commonly leak into log
// lines: cloud and VCS tokens, bearer headers, connection strings and
// private key blocks.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:       "aws-access-key-id",
			Pattern:  `\b(?:A3T[A-Z0-9]|AKIA|AGPA|AIDA|AROA|AIPA|ANPA|ANVA|ASIA)[A-Z0-9]{16}\b`,
			Keywords: []string{"akia", "agpa", "aida", "aroa", "aipa", "anpa", "anva", "asia", "a3t"},
		},
		{
			ID:       "aws-secret-access-key",
			Pattern:  `(?i)(?:aws_secret_access_key|secret_access_key)\s*[:=]\s*['"]?[A-Za-z0-9/+=]{40}['"]?`,
			Keywords: []string{"secret_access_key"},
		},
		{
			ID:       "github-token",
			Pattern:  `\b(?:ghp|gho|ghu|ghs|ghr)_[A-Za-z0-9]{36,255}\b`,
			Keywords: []string{"ghp_", "gho_", "ghu_", "ghs_", "ghr_"},
		},
		{
			ID:       "github-fine-grained-token",
			Pattern:  `\bgithub_pat_[A-Za-z0-9_]{82}\b`,
			Keywords: []string{"github_pat_"},
		},
		{
			ID:       "gitlab-token",
			Pattern:  `\bglpat-[A-Za-z0-9_\-]{20,}\b`,
			Keywords: []string{"glpat-"},
		},
		{
			ID:       "slack-token",
			Pattern:  `\bxox[baprs]-[A-Za-z0-9-]{10,}\b`,
			Keywords: []string{"xox"},
		},
		{
			ID:       "stripe-key",
			Pattern:  `\b(?:sk|rk)_(?:live|test)_[A-Za-z0-9]{16,}\b`,
			Keywords: []string{"sk_live", "sk_test", "rk_live", "rk_test"},
		},
		{
			ID:       "jwt",
			Pattern:  `\beyJ[A-Za-z0-9_-]{8,}\.eyJ[A-Za-z0-9_-]{8,}\.[A-Za-z0-9_-]{8,}`,
			Keywords: []string{"eyj"},
		},
		{
			ID:       "bearer-token",
			Pattern:  `(?i)\bbearer\s+[A-Za-z0-9\-._~+/]{16,}=*`,
			Keywords: []string{"bearer"},
		},
		{
			ID:       "database-url",
			Pattern:  `(?i)\b(?:postgres(?:ql)?|mysql|mongodb(?:\+srv)?|redis|amqps?)://[^:\s/]+:[^@\s]+@[^\s]+`,
			Keywords: []string{"://"},
		},
		{
			ID:       "private-key",
			Pattern:  `-----BEGIN (?:RSA |EC |DSA |OPENSSH |PGP )?PRIVATE KEY(?: BLOCK)?-----[\s\S]*?-----END (?:RSA |EC |DSA |OPENSSH |PGP )?PRIVATE KEY(?: BLOCK)?-----`,
			Keywords: []string{"private key"},
		},
		{
			ID:       "generic-api-key",
			Pattern:  `(?i)\b(?:api[_-]?key|apikey|access[_-]?token|secret[_-]?key)\s*[:=]\s*['"]?[A-Za-z0-9_\-]{16,64}['"]?`,
			Keywords: []string{"key", "token"},
		},
	}
}
