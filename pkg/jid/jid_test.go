package jid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		kind   Kind
		canon  string
		phone  string
		hasErr bool
	}{
		{name: "phone jid", raw: "5511999998888@s.whatsapp.net", kind: KindUser, canon: "5511999998888@s.whatsapp.net", phone: "5511999998888"},
		{name: "legacy server", raw: "5511999998888@c.us", kind: KindUser, canon: "5511999998888@s.whatsapp.net", phone: "5511999998888"},
		{name: "device suffix", raw: "5511999998888:12@s.whatsapp.net", kind: KindUser, canon: "5511999998888@s.whatsapp.net", phone: "5511999998888"},
		{name: "agent and device", raw: "5511999998888.0:3@s.whatsapp.net", kind: KindUser, canon: "5511999998888@s.whatsapp.net", phone: "5511999998888"},
		{name: "lid", raw: "123456789012345@lid", kind: KindLID, canon: "123456789012345@lid"},
		{name: "lid with device", raw: "123456789012345:4@lid", kind: KindLID, canon: "123456789012345@lid"},
		{name: "group", raw: "120363025246125888@g.us", kind: KindGroup, canon: "120363025246125888@g.us"},
		{name: "bare phone", raw: "+55 (11) 99999-8888", kind: KindUser, canon: "5511999998888@s.whatsapp.net", phone: "5511999998888"},
		{name: "uppercase server", raw: "5511999998888@S.WHATSAPP.NET", kind: KindUser, canon: "5511999998888@s.whatsapp.net", phone: "5511999998888"},
		{name: "status broadcast", raw: "status@broadcast", kind: KindBroadcast, canon: "status@broadcast"},
		{name: "newsletter", raw: "120363144038483540@newsletter", kind: KindNewsletter, canon: "120363144038483540@newsletter"},
		{name: "empty", raw: "  ", hasErr: true},
		{name: "too short", raw: "123", hasErr: true},
		{name: "no user", raw: "@s.whatsapp.net", hasErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := Parse(tt.raw)
			if tt.hasErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.kind, id.Kind)
			assert.Equal(t, tt.canon, id.String())
			assert.Equal(t, tt.phone, id.Phone())
		})
	}
}

func TestSupported(t *testing.T) {
	for raw, want := range map[string]bool{
		"5511999998888@s.whatsapp.net":  true,
		"1234@lid":                      true,
		"120363025246125888@g.us":       true,
		"status@broadcast":              false,
		"120363144038483540@newsletter": false,
	} {
		id, err := Parse(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, id.Supported(), raw)
	}
}

func TestPhoneVariants(t *testing.T) {
	assert.Equal(t, []string{"5511999998888", "551199998888"}, PhoneVariants("5511999998888"))
	assert.Equal(t, []string{"551199998888", "5511999998888"}, PhoneVariants("551199998888"))
	// landline: no ninth digit form
	assert.Equal(t, []string{"551133334444"}, PhoneVariants("551133334444"))
	assert.Equal(t, []string{"14155550100"}, PhoneVariants("+1 415 555 0100"))
	assert.Equal(t, []string{"34600111222"}, PhoneVariants("0034600111222"))
	assert.Nil(t, PhoneVariants(""))
}

func TestSamePhone(t *testing.T) {
	assert.True(t, SamePhone("5511999998888", "+55 11 9999-8888"))
	assert.True(t, SamePhone("14155550100", "1 (415) 555-0100"))
	assert.False(t, SamePhone("5511999998888", "5511999997777"))
}
