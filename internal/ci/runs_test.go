package ci_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"

	"github.com/bonjohen/hubqueue/internal/ci"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Run management", func() {
	var (
		ctx context.Context
		mux *http.ServeMux
	)

	BeforeEach(func() {
		ctx = context.Background()
		mux = http.NewServeMux()
	})

	Context("ListRuns", func() {
		It("lists repository runs with status and branch filters", func() {
			mux.HandleFunc("/repos/octo/demo/actions/runs", func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				Expect(r.URL.Query().Get("status")).To(Equal("failure"))
				Expect(r.URL.Query().Get("branch")).To(Equal("main"))
				Expect(r.URL.Query().Get("per_page")).To(Equal("2"))
				fmt.Fprint(w, `{"total_count":3,"workflow_runs":[
					{"id":11,"name":"release","run_number":8,"head_branch":"main","event":"workflow_dispatch","status":"completed","conclusion":"failure","html_url":"https://example.test/runs/11","created_at":"2024-03-01T10:00:00Z"},
					{"id":10,"name":"ci","run_number":7,"head_branch":"main","event":"push","status":"completed","conclusion":"failure","created_at":"2024-02-29T10:00:00Z"},
					{"id":9,"name":"ci","run_number":6,"head_branch":"main","event":"push","status":"completed","conclusion":"failure","created_at":"2024-02-28T10:00:00Z"}
				]}`)
			})

			c := newTestClient(mux)
			runs, err := c.ListRuns(ctx, ci.RunFilter{Branch: "main", Status: "failure", Limit: 2})
			Expect(err).NotTo(HaveOccurred())
			Expect(runs).To(HaveLen(2))
			Expect(runs[0].ID).To(Equal(int64(11)))
			Expect(runs[0].Name).To(Equal("release"))
			Expect(runs[0].Number).To(Equal(8))
			Expect(runs[0].Event).To(Equal("workflow_dispatch"))
			Expect(runs[0].Conclusion).To(Equal("failure"))
			Expect(runs[0].URL).To(Equal("https://example.test/runs/11"))
			Expect(runs[0].CreatedAt.Year()).To(Equal(2024))
		})

		It("narrows the listing to one workflow file", func() {
			mux.HandleFunc("/repos/octo/demo/actions/workflows/release.yml/runs", func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				Expect(r.URL.Query().Get("per_page")).To(Equal(fmt.Sprint(ci.DefaultRunLimit)))
				fmt.Fprint(w, `{"total_count":1,"workflow_runs":[{"id":4,"status":"in_progress"}]}`)
			})

			c := newTestClient(mux)
			runs, err := c.ListRuns(ctx, ci.RunFilter{Workflow: "release.yml"})
			Expect(err).NotTo(HaveOccurred())
			Expect(runs).To(HaveLen(1))
			Expect(runs[0].Status).To(Equal("in_progress"))
		})

		It("reports an unknown workflow file", func() {
			mux.HandleFunc("/repos/octo/demo/actions/workflows/gone.yml/runs", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				fmt.Fprint(w, `{"message":"Not Found"}`)
			})

			c := newTestClient(mux)
			_, err := c.ListRuns(ctx, ci.RunFilter{Workflow: "gone.yml"})
			Expect(err).To(MatchError(ci.ErrWorkflowNotFound))
		})
	})

	Context("GetRun", func() {
		It("returns the run with jobs and steps", func() {
			mux.HandleFunc("/repos/octo/demo/actions/runs/21", func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"id":21,"name":"release","status":"completed","conclusion":"failure","head_branch":"main"}`)
			})
			mux.HandleFunc("/repos/octo/demo/actions/runs/21/jobs", func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				Expect(r.URL.Query().Get("filter")).To(Equal("latest"))
				fmt.Fprint(w, `{"total_count":1,"jobs":[{
					"id":300,"name":"release","status":"completed","conclusion":"failure",
					"started_at":"2024-03-01T10:00:00Z","completed_at":"2024-03-01T10:02:00Z",
					"steps":[
						{"number":1,"name":"Checkout","status":"completed","conclusion":"success"},
						{"number":2,"name":"Create release","status":"completed","conclusion":"failure"}
					]
				}]}`)
			})

			c := newTestClient(mux)
			detail, err := c.GetRun(ctx, 21)
			Expect(err).NotTo(HaveOccurred())
			Expect(detail.ID).To(Equal(int64(21)))
			Expect(detail.Branch).To(Equal("main"))
			Expect(detail.Jobs).To(HaveLen(1))
			job := detail.Jobs[0]
			Expect(job.Name).To(Equal("release"))
			Expect(job.CompletedAt.Sub(job.StartedAt).Minutes()).To(BeNumerically("==", 2))
			Expect(job.Steps).To(Equal([]ci.Step{
				{Number: 1, Name: "Checkout", Status: "completed", Conclusion: "success"},
				{Number: 2, Name: "Create release", Status: "completed", Conclusion: "failure"},
			}))
		})

		It("fails when the run does not exist", func() {
			mux.HandleFunc("/repos/octo/demo/actions/runs/22", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				fmt.Fprint(w, `{"message":"Not Found"}`)
			})

			c := newTestClient(mux)
			_, err := c.GetRun(ctx, 22)
			Expect(err).To(HaveOccurred())
		})
	})

	Context("RerunRun", func() {
		It("retries the rerun request through a server error", func() {
			var calls atomic.Int32
			mux.HandleFunc("/repos/octo/demo/actions/runs/8/rerun", func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				Expect(r.Method).To(Equal(http.MethodPost))
				if calls.Add(1) == 1 {
					w.WriteHeader(http.StatusInternalServerError)
					fmt.Fprint(w, `{"message":"boom"}`)
					return
				}
				w.WriteHeader(http.StatusCreated)
			})

			c := newTestClient(mux)
			Expect(c.RerunRun(ctx, 8)).To(Succeed())
			Expect(calls.Load()).To(Equal(int32(2)))
		})

		It("does not retry a refused rerun", func() {
			var calls atomic.Int32
			mux.HandleFunc("/repos/octo/demo/actions/runs/8/rerun", func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(http.StatusForbidden)
				fmt.Fprint(w, `{"message":"This workflow run is not completed"}`)
			})

			c := newTestClient(mux)
			Expect(c.RerunRun(ctx, 8)).NotTo(Succeed())
			Expect(calls.Load()).To(Equal(int32(1)))
		})
	})

	It("talks to an enterprise host when a base URL is given", func() {
		mux.HandleFunc("/api/v3/repos/octo/demo/actions/runs/3", func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.Header.Get("Authorization")).To(Equal("Bearer s3cret"))
			fmt.Fprint(w, `{"id":3,"status":"queued"}`)
		})
		srv := httptest.NewServer(mux)
		DeferCleanup(srv.Close)

		c, err := ci.New(ctx, "s3cret", "octo/demo", discardLogger(), ci.WithBaseURL(srv.URL))
		Expect(err).NotTo(HaveOccurred())
		res, err := c.RunStatus(ctx, 3)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Status).To(Equal("queued"))
	})
})
