package models

import (
	"strings"
	"testing"
)

func TestValidDomainName(t *testing.T) {
	valid := []string{
		"example.com",
		"sub.example.com",
		"my-site.example.co.uk",
		"xn--bcher-kva.example",
		"a.bc",
	}
	for _, name := range valid {
		if !ValidDomainName(name) {
			t.Errorf("expected %q valid", name)
		}
	}

	invalid := []string{
		"",
		"nodots",
		"-leading.example.com",
		"trailing-.example.com",
		"spa ce.example.com",
		"semi;colon.example.com",
		"$(whoami).example.com",
		"back`tick.example.com",
		"example.123",
		"example.c",
		"a..b.example.com",
		strings.Repeat("a", 64) + ".example.com",
		strings.Repeat("a.", 130) + "com",
	}
	for _, name := range invalid {
		if ValidDomainName(name) {
			t.Errorf("expected %q invalid", name)
		}
	}
}

func TestValidDomainNameIsCaseInsensitive(t *testing.T) {
	if !ValidDomainName("Example.COM") {
		t.Error("expected mixed case to validate after lowering")
	}
}

func TestValidGitURL(t *testing.T) {
	valid := []string{
		"https://github.com/user/repo.git",
		"https://gitlab.com/group/project",
		"https://bitbucket.org/team/repo",
	}
	for _, u := range valid {
		if !ValidGitURL(u) {
			t.Errorf("expected %q valid", u)
		}
	}

	invalid := []string{
		"http://github.com/user/repo.git",
		"git@github.com:user/repo.git",
		"https://example.com/user/repo.git",
		"ssh://github.com/user/repo",
		"",
		"https://github.com",
		"https://github.com/user/$(touch /tmp/pwned).git",
		"https://github.com/user/`id`.git",
		"https://github.com/user/repo.git;id",
		"https://github.com/user/repo's.git",
		"https://github.com/user/repo.git?ref=$(id)",
		"https://github.com/user/repo.git#$(id)",
		"https://user:pw@github.com/user/repo.git",
	}
	for _, u := range invalid {
		if ValidGitURL(u) {
			t.Errorf("expected %q invalid", u)
		}
	}
}

func TestPlanHelpers(t *testing.T) {
	cases := []struct {
		plan  string
		limit int
		size  string
	}{
		{PlanBasic, 2, "s-1vcpu-1gb"},
		{PlanPro, 5, "s-1vcpu-2gb"},
		{PlanPremium, 10, "s-2vcpu-4gb"},
		{PlanFounder, 10, "s-1vcpu-1gb"},
	}
	for _, tc := range cases {
		if got := SiteLimitForPlan(tc.plan); got != tc.limit {
			t.Errorf("SiteLimitForPlan(%q) = %d, want %d", tc.plan, got, tc.limit)
		}
		if got := DropletSizeForPlan(tc.plan); got != tc.size {
			t.Errorf("DropletSizeForPlan(%q) = %q, want %q", tc.plan, got, tc.size)
		}
		if !ValidPlan(tc.plan) {
			t.Errorf("expected %q valid", tc.plan)
		}
	}

	if ValidPlan("mega") {
		t.Error("expected mega invalid")
	}
}
