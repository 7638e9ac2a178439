package masking

import "strings"

// Token is a replacement marker substituted for a masked span.
type Token string

const (
	TokenEmail      Token = "[EMAIL]"
	TokenPhone      Token = "[PHONE]"
	TokenPincode    Token = "[PINCODE]"
	TokenSocialLink Token = "[SOCIAL_LINK]"
	TokenURL        Token = "[URL]"
	TokenPerson     Token = "[PERSON]"
	TokenPlace      Token = "[PLACE]"
	TokenOrg        Token = "[ORG]"
	TokenDate       Token = "[DATE]"
	TokenName       Token = "[NAME]"
)

// Tokens lists the full replacement vocabulary in pipeline order.
var Tokens = []Token{
	TokenEmail,
	TokenPhone,
	TokenPincode,
	TokenSocialLink,
	TokenURL,
	TokenPerson,
	TokenPlace,
	TokenOrg,
	TokenDate,
	TokenName,
}

func (t Token) String() string { return string(t) }

// CountTokens returns how many times each vocabulary token occurs in text.
// Tokens that do not occur are omitted.
func CountTokens(text string) map[Token]int {
	counts := make(map[Token]int)
	for _, token := range Tokens {
		if n := strings.Count(text, string(token)); n > 0 {
			counts[token] = n
		}
	}
	return counts
}
