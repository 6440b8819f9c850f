package policy_test

import (
	"strings"
	"testing"

	"github.com/snagmail/snagmail/pkg/policy"
)

func TestParseAddressKey(t *testing.T) {
	testTable := []struct {
		input  string
		local  string
		domain string
	}{
		{input: "mailbox@domain.com", local: "mailbox", domain: "domain.com"},
		{input: "user123@domain.com", local: "user123", domain: "domain.com"},
		{input: "MailBOX@Domain.COM", local: "mailbox", domain: "domain.com"},
		{input: "First.Last@domain.com", local: "first.last", domain: "domain.com"},
		{input: "user+label@domain.com", local: "user", domain: "domain.com"},
		{input: "chars!#$%@domain.com", local: "chars!#$%", domain: "domain.com"},
		{input: "chars&'*-@domain.com", local: "chars&'*-", domain: "domain.com"},
		{input: "chars=/?^@domain.com", local: "chars=/?^", domain: "domain.com"},
		{input: "chars_`.{@domain.com", local: "chars_`.{", domain: "domain.com"},
		{input: "chars|}~@domain.com", local: "chars|}~", domain: "domain.com"},
	}
	for _, tc := range testTable {
		key, err := policy.ParseAddressKey(tc.input)
		if err != nil {
			t.Errorf("Error while parsing %q: %v", tc.input, err)
			continue
		}
		if key.LocalPart != tc.local {
			t.Errorf("Parsing %q, expected local %q, got %q", tc.input, tc.local, key.LocalPart)
		}
		if key.Domain != tc.domain {
			t.Errorf("Parsing %q, expected domain %q, got %q", tc.input, tc.domain, key.Domain)
		}
		want := tc.local + "@" + tc.domain
		if got := key.String(); got != want {
			t.Errorf("Parsing %q, expected key %q, got %q", tc.input, want, got)
		}
	}
}

func TestParseAddressKeyInvalid(t *testing.T) {
	testTable := []struct {
		input, msg string
	}{
		{"", "Empty address is not permitted"},
		{"mailbox", "Address without a domain is not a lookup key"},
		{"@domain.com", "Cannot start with @ symbol"},
		{".user@domain.com", "Cannot start with a period"},
		{"first..last@domain.com", "Sequence of periods is not permitted"},
		{"first last@domain.com", "Space not permitted"},
		{"first\"last@domain.com", "Double quote not permitted"},
		{"first\nlast@domain.com", "Control chars not permitted"},
		{"user@host@domain.com", "Second @ symbol not permitted"},
		{"user@google..com", "Double dot in domain not valid"},
		{"user@foo.-bar.com", "Domain label cannot start with hyphen"},
		{"user@" + strings.Repeat("a", 256), "Max domain length is 255"},
	}
	for _, tt := range testTable {
		if _, err := policy.ParseAddressKey(tt.input); err == nil {
			t.Errorf("Didn't get an error while parsing %q: %v", tt.input, tt.msg)
		}
	}
}

func TestValidDomainPart(t *testing.T) {
	testTable := []struct {
		input  string
		expect bool
		msg    string
	}{
		{"", false, "Empty domain is not valid"},
		{"hostname", true, "Just a hostname is valid"},
		{"github.com", true, "Two labels should be just fine"},
		{"my-domain.com", true, "Hyphen is allowed mid-label"},
		{"_domainkey.foo.com", true, "Underscores are allowed"},
		{"bar.com.", true, "Must be able to end with a dot"},
		{"ABC.6DBS.com", true, "Mixed case is OK"},
		{"mail.123.com", true, "Number only label valid"},
		{"123.com", true, "Number only label valid"},
		{"google..com", false, "Double dot not valid"},
		{".foo.com", false, "Cannot start with a dot"},
		{"google\r.com", false, "Special chars not allowed"},
		{"foo.-bar.com", false, "Label cannot start with hyphen"},
		{"foo-.bar.com", false, "Label cannot end with hyphen"},
		{strings.Repeat("a", 256), false, "Max domain length is 255"},
		{strings.Repeat("a", 63) + ".com", true, "Should allow 63 char domain label"},
		{strings.Repeat("a", 64) + ".com", false, "Max domain label length is 63"},
	}
	for _, tt := range testTable {
		if policy.ValidDomainPart(tt.input) != tt.expect {
			t.Errorf("Expected %v for %q: %s", tt.expect, tt.input, tt.msg)
		}
	}
}

func TestCanonicalLocalPart(t *testing.T) {
	testTable := []struct {
		input string
		want  string
	}{
		{"mailbox", "mailbox"},
		{"MailBOX", "mailbox"},
		{"First.Last", "first.last"},
		{"user+label", "user"},
		{"user+label+more", "user"},
		{"chars!#$%&'*-", "chars!#$%&'*-"},
	}
	for _, tc := range testTable {
		got, err := policy.CanonicalLocalPart(tc.input)
		if err != nil {
			t.Errorf("Error canonicalizing %q: %v", tc.input, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Canonicalizing %q, expected %q, got %q", tc.input, tc.want, got)
		}
	}
}

func TestCanonicalLocalPartInvalid(t *testing.T) {
	testTable := []struct {
		input, msg string
	}{
		{"", "Empty local part is not permitted"},
		{"first last", "Space requires quoting"},
		{"no,commas", "Comma requires quoting"},
		{"t[es]t", "Square brackets require quoting"},
	}
	for _, tt := range testTable {
		if _, err := policy.CanonicalLocalPart(tt.input); err == nil {
			t.Errorf("Didn't get an error for %q: %v", tt.input, tt.msg)
		}
	}
}
