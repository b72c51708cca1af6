package release_test

import (
	"github.com/bonjohen/hubqueue/internal/release"
	"github.com/bonjohen/hubqueue/internal/version"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/afero"
)

var _ = Describe("Plan", func() {
	var fsys afero.Fs

	BeforeEach(func() {
		fsys = afero.NewMemMapFs()
	})

	load := func(doc string) (*release.Plan, error) {
		Expect(afero.WriteFile(fsys, "release.yaml", []byte(doc), 0o644)).To(Succeed())
		return release.LoadFromFile(fsys, "release.yaml")
	}

	It("loads a complete plan", func() {
		plan, err := load(`
kind: Release
apiVersion: hubqueue/v1
spec:
  repo: octo/demo
  files: [setup.cfg, VERSION]
  increment: minor
  tag: true
  publish: true
  prerelease: true
  notesFile: dist/NOTES.md
  assets: [dist/app.tar.gz]
`)
		Expect(err).NotTo(HaveOccurred())
		Expect(plan.Spec.Files).To(Equal([]string{"setup.cfg", "VERSION"}))
		Expect(plan.Spec.Prefix()).To(Equal("v"))
		Expect(plan.Spec.TagFor(version.Spec{Major: 1, Minor: 3})).To(Equal("v1.3.0"))

		policy, err := plan.Spec.Policy()
		Expect(err).NotTo(HaveOccurred())
		Expect(policy.Increment).To(Equal(version.IncrementMinor))
	})

	It("honours an explicitly empty tag prefix", func() {
		plan, err := load("kind: Release\nspec:\n  tagPrefix: \"\"\n")
		Expect(err).NotTo(HaveOccurred())
		Expect(plan.Spec.TagFor(version.Spec{Major: 2})).To(Equal("2.0.0"))
	})

	DescribeTable("rejects invalid plans",
		func(doc, message string) {
			_, err := load(doc)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring(message))
		},
		Entry("wrong kind", "kind: Change\n", "kind must be 'Release'"),
		Entry("bad increment", "kind: Release\nspec:\n  increment: huge\n", "spec.increment"),
		Entry("bad explicit version", "kind: Release\nspec:\n  version: one\n", "spec.version"),
		Entry("bad pattern", "kind: Release\nspec:\n  pattern: \"(\"\n", "spec.pattern"),
		Entry("publish without repo", "kind: Release\nspec:\n  publish: true\n", "spec.repo"),
		Entry("assets without publish", "kind: Release\nspec:\n  assets: [a]\n", "spec.assets"),
		Entry("not yaml", "kind: [", "failed to parse"),
	)

	It("reports a missing file", func() {
		_, err := release.LoadFromFile(fsys, "nope.yaml")
		Expect(err).To(MatchError(ContainSubstring("failed to read release plan")))
	})
})
