// Package jid normalises the contact identifiers a WhatsApp provider can send for
// the same person: phone JIDs (current and legacy servers), device-suffixed JIDs,
// opaque "lid" ids, group JIDs and bare phone numbers.
package jid

import (
	"errors"
	"strings"

	"go.mau.fi/whatsmeow/types"
)

type Kind string

const (
	KindUser       Kind = "user"
	KindGroup      Kind = "group"
	KindLID        Kind = "lid"
	KindBroadcast  Kind = "broadcast"
	KindNewsletter Kind = "newsletter"
	KindUnknown    Kind = "unknown"
)

var (
	ErrEmpty   = errors.New("identifier is empty")
	ErrInvalid = errors.New("identifier is not a valid JID or phone number")
)

// Identifier is a parsed, device-less contact or chat address.
type Identifier struct {
	Kind   Kind
	User   string
	Server string
}

// Parse accepts "5511999998888@s.whatsapp.net", "5511999998888:12@s.whatsapp.net",
// "5511999998888@c.us", "123456789@lid", "1203630@g.us" or "+55 (11) 99999-8888".
func Parse(raw string) (Identifier, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Identifier{}, ErrEmpty
	}

	if !strings.Contains(raw, "@") {
		digits := DigitsOnly(raw)
		if len(digits) < 6 {
			return Identifier{}, ErrInvalid
		}
		return UserJID(digits), nil
	}

	parsed, err := types.ParseJID(strings.ToLower(raw))
	if err != nil {
		return Identifier{}, errors.Join(ErrInvalid, err)
	}
	parsed = parsed.ToNonAD()

	id := Identifier{User: stripDevice(parsed.User), Server: parsed.Server}
	switch parsed.Server {
	case types.DefaultUserServer, types.LegacyUserServer:
		id.Server = types.DefaultUserServer
		id.Kind = KindUser
		id.User = DigitsOnly(id.User)
	case types.HiddenUserServer:
		id.Kind = KindLID
	case types.GroupServer:
		id.Kind = KindGroup
	case types.BroadcastServer:
		id.Kind = KindBroadcast
	case types.NewsletterServer:
		id.Kind = KindNewsletter
	default:
		id.Kind = KindUnknown
	}

	if id.User == "" {
		return Identifier{}, ErrInvalid
	}
	return id, nil
}

// UserJID builds the canonical phone identifier from digits.
func UserJID(digits string) Identifier {
	return Identifier{Kind: KindUser, User: digits, Server: types.DefaultUserServer}
}

// stripDevice drops ".agent" and ":device" parts left by providers that send raw AD-JIDs.
func stripDevice(user string) string {
	if i := strings.IndexByte(user, ':'); i >= 0 {
		user = user[:i]
	}
	if i := strings.IndexByte(user, '.'); i >= 0 {
		user = user[:i]
	}
	return user
}

func (id Identifier) String() string {
	if id.User == "" {
		return ""
	}
	return id.User + "@" + id.Server
}

func (id Identifier) IsZero() bool { return id.User == "" }

// Supported reports whether a conversation can be attached to this identifier.
func (id Identifier) Supported() bool {
	return id.Kind == KindUser || id.Kind == KindLID || id.Kind == KindGroup
}

// Phone returns the phone digits of a user identifier, "" otherwise.
func (id Identifier) Phone() string {
	if id.Kind != KindUser {
		return ""
	}
	return id.User
}

// JID converts back to the whatsmeow representation.
func (id Identifier) JID() types.JID {
	return types.NewJID(id.User, id.Server)
}

// DigitsOnly keeps ASCII digits and drops a leading international "00".
func DigitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if strings.HasPrefix(out, "00") && len(out) > 8 {
		out = strings.TrimLeft(out, "0")
	}
	return out
}

// PhoneVariants returns digits plus every alternative spelling WhatsApp may use
// for the same subscriber. Brazilian mobiles exist both with and without the
// ninth digit: 55 DD 9XXXXXXXX and 55 DD XXXXXXXX.
func PhoneVariants(digits string) []string {
	digits = DigitsOnly(digits)
	if digits == "" {
		return nil
	}
	out := []string{digits}
	if !strings.HasPrefix(digits, "55") {
		return out
	}
	area := digits[2:min(4, len(digits))]
	if len(area) < 2 || area[0] == '0' {
		return out
	}
	switch len(digits) {
	case 13:
		if digits[4] == '9' && isMobileLead(digits[5]) {
			out = append(out, digits[:4]+digits[5:])
		}
	case 12:
		if isMobileLead(digits[4]) {
			out = append(out, digits[:4]+"9"+digits[4:])
		}
	}
	return out
}

func isMobileLead(c byte) bool {
	return c >= '6' && c <= '9'
}

// SamePhone reports whether two phone strings name the same subscriber.
func SamePhone(a, b string) bool {
	va := PhoneVariants(a)
	vb := PhoneVariants(b)
	for _, x := range va {
		for _, y := range vb {
			if x == y {
				return true
			}
		}
	}
	return false
}
