package ci_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/bonjohen/hubqueue/internal/ci"
	"github.com/bonjohen/hubqueue/internal/monitor"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Workflow runs", func() {
	var (
		ctx context.Context
		mux *http.ServeMux
	)

	BeforeEach(func() {
		ctx = context.Background()
		mux = http.NewServeMux()
	})

	Context("Dispatch", func() {
		It("dispatches and locates the newest run created afterwards", func() {
			var dispatched atomic.Bool
			var lists atomic.Int32

			mux.HandleFunc("/repos/octo/demo/actions/workflows/ci.yml/dispatches", func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				Expect(r.Method).To(Equal(http.MethodPost))
				var body struct {
					Ref    string            `json:"ref"`
					Inputs map[string]string `json:"inputs"`
				}
				Expect(json.NewDecoder(r.Body).Decode(&body)).To(Succeed())
				Expect(body.Ref).To(Equal("main"))
				Expect(body.Inputs).To(HaveKeyWithValue("target", "prod"))
				dispatched.Store(true)
				w.WriteHeader(http.StatusNoContent)
			})
			mux.HandleFunc("/repos/octo/demo/actions/workflows/ci.yml/runs", func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				Expect(r.URL.Query().Get("event")).To(Equal("workflow_dispatch"))
				Expect(r.URL.Query().Get("created")).To(HavePrefix(">="))
				if lists.Add(1) == 1 {
					fmt.Fprint(w, `{"total_count":0,"workflow_runs":[]}`)
					return
				}
				now := time.Now().UTC().Format(time.RFC3339)
				old := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
				fmt.Fprintf(w, `{"total_count":2,"workflow_runs":[
					{"id":1,"status":"completed","created_at":%q,"html_url":"https://example.test/runs/1"},
					{"id":99,"status":"queued","created_at":%q,"html_url":"https://example.test/runs/99"}
				]}`, old, now)
			})

			c := newTestClient(mux)
			d, err := c.Dispatch(ctx, "ci.yml", "main", map[string]interface{}{"target": "prod"})
			Expect(err).NotTo(HaveOccurred())
			Expect(dispatched.Load()).To(BeTrue())
			Expect(d.RunID).To(Equal(int64(99)))
			Expect(d.WorkflowRef).To(Equal("ci.yml"))
			Expect(d.URL).To(Equal("https://example.test/runs/99"))
			Expect(lists.Load()).To(Equal(int32(2)))
		})

		It("reports a missing workflow", func() {
			mux.HandleFunc("/repos/octo/demo/actions/workflows/nope.yml/dispatches", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				fmt.Fprint(w, `{"message":"Not Found"}`)
			})

			c := newTestClient(mux)
			_, err := c.Dispatch(ctx, "nope.yml", "main", nil)
			Expect(err).To(MatchError(ci.ErrWorkflowNotFound))
		})

		It("gives up when the run never appears", func() {
			mux.HandleFunc("/repos/octo/demo/actions/workflows/ci.yml/dispatches", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})
			mux.HandleFunc("/repos/octo/demo/actions/workflows/ci.yml/runs", func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"total_count":0,"workflow_runs":[]}`)
			})

			c := newTestClient(mux)
			_, err := c.Dispatch(ctx, "ci.yml", "main", nil)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("failed to locate run"))
		})
	})

	Context("RunStatus", func() {
		It("maps the remote run into a query result", func() {
			mux.HandleFunc("/repos/octo/demo/actions/runs/42", func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"id":42,"status":"completed","conclusion":"failure"}`)
			})

			c := newTestClient(mux)
			res, err := c.RunStatus(ctx, 42)
			Expect(err).NotTo(HaveOccurred())
			Expect(res).To(Equal(monitor.QueryResult{Status: "completed", Conclusion: "failure"}))
		})

		It("drives a monitor to completion through transient errors", func() {
			var calls atomic.Int32
			mux.HandleFunc("/repos/octo/demo/actions/runs/7", func(w http.ResponseWriter, r *http.Request) {
				switch calls.Add(1) {
				case 1:
					fmt.Fprint(w, `{"id":7,"status":"queued"}`)
				case 2, 3:
					w.WriteHeader(http.StatusBadGateway)
					fmt.Fprint(w, `{"message":"bad gateway"}`)
				case 4:
					fmt.Fprint(w, `{"id":7,"status":"in_progress"}`)
				default:
					fmt.Fprint(w, `{"id":7,"status":"completed","conclusion":"success"}`)
				}
			})

			c := newTestClient(mux)
			m := monitor.New(c, discardLogger(), monitor.WithClock(&stepClock{now: time.Now()}))
			run, err := m.Watch(ctx, 7, "ci.yml", monitor.Config{Interval: time.Second, Timeout: time.Minute})
			Expect(err).NotTo(HaveOccurred())
			Expect(run.Succeeded()).To(BeTrue())
			Expect(run.Transitions).To(HaveLen(3))
		})
	})

	Context("CancelRun", func() {
		It("accepts the 202 response", func() {
			mux.HandleFunc("/repos/octo/demo/actions/runs/5/cancel", func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				Expect(r.Method).To(Equal(http.MethodPost))
				w.WriteHeader(http.StatusAccepted)
				fmt.Fprint(w, `{}`)
			})

			c := newTestClient(mux)
			Expect(c.CancelRun(ctx, 5)).To(Succeed())
		})

		It("surfaces a conflict", func() {
			mux.HandleFunc("/repos/octo/demo/actions/runs/5/cancel", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusConflict)
				fmt.Fprint(w, `{"message":"Cannot cancel a workflow run that is completed."}`)
			})

			c := newTestClient(mux)
			Expect(c.CancelRun(ctx, 5)).NotTo(Succeed())
		})
	})

	It("validates repo slugs", func() {
		_, _, err := ci.ParseRepo("just-a-name")
		Expect(err).To(HaveOccurred())
		owner, repo, err := ci.ParseRepo("octo/demo")
		Expect(err).NotTo(HaveOccurred())
		Expect(owner + "/" + repo).To(Equal("octo/demo"))
	})

	It("requires a token", func() {
		_, err := ci.New(ctx, "", "octo/demo", discardLogger())
		Expect(err).To(MatchError(ci.ErrMissingToken))
	})
})
