package base

import (
	"strings"
	"testing"
)

func TestSimpleFilter(t *testing.T) {
	var filters = []struct {
		f    string
		pass bool
		op   string // root node's operator name
	}{
		{`(   userName eq "bje\"n\\s en")`, true, "eq"},
		{`userName eq "bjensen" and email co "example.com"`, true, "and"},
		{`not (userName eq "bjensen" and email co "example.com")`, true, "not"},
		{`abc eq 1 and not (userName eq "bjensen" and email co "example.com")`, true, "and"},
		{`xyz eq 1 not (userName eq "invalid filter")`, false, ""},
		{`abc pr`, true, "pr"},
		{`userName eq "bjensen`, false, "eq"},
		{`userType eq "Employee" and emails[type eq "work" and  value co "@example.com"]`, true, "and"},
		{`(sCHEmA:e.V pR or (sChEmA:J.i-[h.L- GT nuLl]))`, true, "or"},
		{`((SchemA:u.P8 pR))`, true, "pr"},
		{`c.W pr`, true, "pr"},
		{`userType eq "Employee" and (emails co "example.com" or emails.value co "example.org") AND abc eq bj`, true, "and"},
	}

	for _, f := range filters {
		xpr, err := ParseFilter(f.f)
		if f.pass {
			if xpr == nil || err != nil {
				t.Errorf("failed to parse valid filter %q: %v", f.f, err)
				continue
			}
			if xpr.Op != strings.ToUpper(f.op) {
				t.Errorf("filter %q: expected root op %q, got %q", f.f, f.op, xpr.Op)
			}
		} else if xpr != nil || err == nil {
			t.Errorf("expected filter %q to fail parsing", f.f)
		}
	}
}

func TestNodeHierarchy(t *testing.T) {
	s := `userName eq "bjensen" and (emails eq "k@example.com" and (im eq "z" and id eq "1" ))`
	xpr, err := ParseFilter(s)
	if err != nil {
		t.Fatal(err)
	}

	if len(xpr.Children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(xpr.Children))
	}
	if xpr.Children[0].Op != "EQ" || xpr.Children[0].Name != "username" {
		t.Errorf("wrong first child")
	}

	child2 := xpr.Children[1]
	if child2.Op != "AND" {
		t.Errorf("wrong second child")
	}

	child21 := child2.Children[0]
	if child21.Op != "EQ" || child21.Name != "emails" {
		t.Errorf("wrong second child's AND node's left node")
	}

	child22 := child2.Children[1]
	if child22.Op != "AND" {
		t.Errorf("wrong second child's AND node's right node")
	}

	if child22.Children[0].Name != "im" || child22.Children[1].Name != "id" {
		t.Errorf("wrong innermost AND children")
	}
}

func TestParentheses(t *testing.T) {
	cases := []struct {
		filter   string
		wantErr  bool
		checkFn  func(*testing.T, *FilterNode)
	}{
		{
			filter: `(emails.type co "home" and username co "ss" )and displayname sw "j"`,
			checkFn: func(t *testing.T, xpr *FilterNode) {
				if xpr.Children[1].Name != "displayname" {
					t.Errorf("expected second child displayname, got %s", xpr.Children[1].Name)
				}
			},
		},
		{
			filter: `(emails.type co "home" and username co "ss") and (displayname sw "j" or email.value co "org")`,
			checkFn: func(t *testing.T, xpr *FilterNode) {
				if xpr.Children[1].Children[0].Name != "displayname" || xpr.Children[1].Children[1].Name != "email.value" {
					t.Errorf("incorrect nested OR parse tree")
				}
			},
		},
		{filter: `((emails.type co "home" and (username co "ss")) and displayname sw "j"`, wantErr: true},
		{filter: `(and)`, wantErr: true},
		{filter: `(username eq)`, wantErr: true},
		{filter: `(username pr)`, wantErr: false},
	}

	for _, c := range cases {
		xpr, err := ParseFilter(c.filter)
		if c.wantErr {
			if err == nil {
				t.Errorf("expected filter %q to fail", c.filter)
			}
			continue
		}
		if err != nil {
			t.Errorf("filter %q: unexpected error %v", c.filter, err)
			continue
		}
		if c.checkFn != nil {
			c.checkFn(t, xpr)
		}
	}
}
