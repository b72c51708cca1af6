package changelog_test

import (
	"strings"
	"time"

	"github.com/bonjohen/hubqueue/internal/changelog"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Notes", func() {
	var generatedAt time.Time

	BeforeEach(func() {
		generatedAt = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	})

	It("renders categories in fixed order regardless of input order", func() {
		commits := []changelog.Commit{
			{Hash: "0123456789abcdef", Subject: "chore: cleanup"},
			{Hash: "1123456789abcdef", Subject: "docs: update readme", Body: "long body"},
			{Hash: "2123456789abcdef", Subject: "fix: null pointer"},
			{Hash: "3123456789abcdef", Subject: "feat: add export"},
		}
		notes := changelog.Build("v1.2.4", "v1.2.3", commits, generatedAt)

		Expect(notes.Render()).To(Equal(strings.Join([]string{
			"# Release v1.2.4 (2026-10-19)",
			"",
			"Changes since v1.2.3.",
			"",
			"## Features",
			"",
			"- 3123456 feat: add export",
			"",
			"## Bug Fixes",
			"",
			"- 2123456 fix: null pointer",
			"",
			"## Documentation",
			"",
			"- 1123456 docs: update readme",
			"",
			"## Other Changes",
			"",
			"- 0123456 chore: cleanup",
			"",
			"",
		}, "\n")))
	})

	It("keeps bodies available without rendering them", func() {
		commits := []changelog.Commit{{Hash: "abcdef0123", Subject: "docs: guide", Body: "BODY TEXT"}}
		notes := changelog.Build("v2.0.0", "", commits, generatedAt)
		Expect(notes.Render()).NotTo(ContainSubstring("BODY TEXT"))
		Expect(notes.Commits(changelog.Documentation)[0].Body).To(Equal("BODY TEXT"))
	})

	It("omits empty categories", func() {
		notes := changelog.Build("v1.0.1", "v1.0.0", []changelog.Commit{{Hash: "abcdef0123", Subject: "fix: crash"}}, generatedAt)
		out := notes.Render()
		Expect(out).To(ContainSubstring("## Bug Fixes"))
		Expect(out).NotTo(ContainSubstring("## Features"))
		Expect(out).NotTo(ContainSubstring("## Other Changes"))
	})

	It("states that there are no changes for an empty range", func() {
		notes := changelog.Build("v1.0.1", "v1.0.0", nil, generatedAt)
		Expect(notes.Len()).To(Equal(0))
		Expect(notes.Render()).To(ContainSubstring("No changes since previous release."))
	})

	It("renders a commit with an empty subject by hash alone under Other", func() {
		notes := changelog.Build("v1.0.1", "", []changelog.Commit{{Hash: "feedfacecafe"}}, generatedAt)
		Expect(notes.Render()).To(ContainSubstring("## Other Changes\n\n- feedfac\n"))
	})

	It("renders identical text on repeated builds", func() {
		commits := []changelog.Commit{{Hash: "abcdef0123", Subject: "feat: one"}, {Hash: "bcdef01234", Subject: "two"}}
		a := changelog.Build("v1", "v0", commits, generatedAt)
		b := changelog.Build("v1", "v0", commits, generatedAt)
		Expect(a).To(Equal(b))
		Expect(a.Render()).To(Equal(b.Render()))
	})
})
