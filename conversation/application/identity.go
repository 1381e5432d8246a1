package application

import (
	"fmt"
	"strings"

	"github.com/AzielCF/az-crm/conversation/domain"
	"github.com/AzielCF/az-crm/pkg/jid"
)

// identity junta todo lo que sabemos de un contacto a partir de uno o dos identificadores.
type identity struct {
	primary jid.Identifier
	phone   string
	lid     string
	group   string
}

func parseIdentity(remote, alt string) (identity, error) {
	primary, err := jid.Parse(remote)
	if err != nil {
		return identity{}, fmt.Errorf("%w: %q: %v", domain.ErrUnsupportedIdentifier, remote, err)
	}
	if !primary.Supported() {
		return identity{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedIdentifier, remote)
	}

	id := identity{primary: primary}
	id.absorb(primary)
	if alt != "" && primary.Kind != jid.KindGroup {
		if a, err := jid.Parse(alt); err == nil && (a.Kind == jid.KindUser || a.Kind == jid.KindLID) {
			id.absorb(a)
		}
	}
	return id, nil
}

func (id *identity) absorb(x jid.Identifier) {
	switch x.Kind {
	case jid.KindUser:
		if id.phone == "" {
			id.phone = x.User
		}
	case jid.KindLID:
		if id.lid == "" {
			id.lid = x.User
		}
	case jid.KindGroup:
		id.group = x.User
	}
}

func (id identity) lidJID() string {
	if id.lid == "" {
		return ""
	}
	return id.lid + "@lid"
}

// keys devuelve las claves de alias: group:<id>, phone:<variante>, lid:<id>.
func (id identity) keys() []string {
	var keys []string
	if id.group != "" {
		return append(keys, "group:"+id.group)
	}
	for _, v := range jid.PhoneVariants(id.phone) {
		keys = append(keys, "phone:"+v)
	}
	if id.lid != "" {
		keys = append(keys, "lid:"+id.lid)
	}
	return keys
}

// conversationKeys rebuilds alias keys from a stored conversation.
func conversationKeys(c *domain.Conversation) []string {
	var id identity
	for _, raw := range []string{c.RemoteJID, c.LID} {
		if raw == "" {
			continue
		}
		if parsed, err := jid.Parse(raw); err == nil {
			id.absorb(parsed)
		}
	}
	keys := id.keys()
	if c.Phone != "" && !c.IsGroup {
		for _, v := range jid.PhoneVariants(c.Phone) {
			keys = appendUnique(keys, "phone:"+v)
		}
	}
	return keys
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

// looksLikePhone detecta nombres que solo repiten el número ("+55 11 99999-8888").
func looksLikePhone(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	digits := 0
	for _, r := range name {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '+' || r == '-' || r == ' ' || r == '(' || r == ')' || r == '.':
		default:
			return false
		}
	}
	return digits >= 6
}

func cleanName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}
