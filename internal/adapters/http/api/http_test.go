package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/tapdin/planner/internal/adapters/http/api"
	"github.com/tapdin/planner/internal/adapters/repository"
	service "github.com/tapdin/planner/internal/app"
	"github.com/tapdin/planner/internal/domain/content"
	"github.com/tapdin/planner/internal/domain/errs"
	"github.com/tapdin/planner/internal/domain/model"
)

// mockDependencies lets each test script the service's answers.
type mockDependencies struct {
	result  service.Result
	procErr error
	lastIn  content.Input
	persist bool

	plans   []model.Plan
	listErr error

	deleteErr error
	deletedID string

	pingErr error
}

func (m *mockDependencies) Process(_ context.Context, in content.Input, persist bool) (service.Result, error) {
	m.lastIn = in
	m.persist = persist
	return m.result, m.procErr
}

func (m *mockDependencies) List(context.Context) ([]model.Plan, error) {
	return m.plans, m.listErr
}

func (m *mockDependencies) Delete(_ context.Context, id string) error {
	m.deletedID = id
	return m.deleteErr
}

func (m *mockDependencies) Ping(context.Context) error { return m.pingErr }

func (m *mockDependencies) GetStats(context.Context) map[string]interface{} {
	return map[string]interface{}{"plans": len(m.plans), "store": "memory"}
}

func newMux(deps api.Dependencies) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, api.WithMaxUploadBytes(1<<20)).Register(context.Background(), mux)
	return mux
}

func multipartBody(fields map[string]string, image []byte) (*bytes.Buffer, string) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	if image != nil {
		fw, _ := mw.CreateFormFile("image", "flyer.png")
		_, _ = fw.Write(image)
	}
	_ = mw.Close()
	return &buf, mw.FormDataContentType()
}

func do(mux *http.ServeMux, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func errorBody(w *httptest.ResponseRecorder) string {
	var body struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return body.Error
}

func TestProcess_Post(t *testing.T) {
	Convey("Given the process endpoint", t, func() {
		rec := model.NewEventRecord()
		rec.Title = "Beach Volleyball"
		deps := &mockDependencies{result: service.Result{ID: "abc", Record: rec}}
		mux := newMux(deps)

		Convey("When a URL and image are posted", func() {
			body, ct := multipartBody(map[string]string{"url": " https://example.com/e "}, []byte("png"))
			req := httptest.NewRequest(http.MethodPost, "/api/process", body)
			req.Header.Set("Content-Type", ct)
			w := do(mux, req)

			Convey("Then the plan is created", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				So(w.Body.String(), ShouldContainSubstring, `"success":true`)
				So(w.Body.String(), ShouldContainSubstring, `"id":"abc"`)
				So(deps.persist, ShouldBeTrue)
				So(deps.lastIn.URL, ShouldEqual, "https://example.com/e")
				So(string(deps.lastIn.Image), ShouldEqual, "png")
				So(deps.lastIn.ImageName, ShouldEqual, "flyer.png")
				So(w.Header().Get(api.RequestIDHeader), ShouldNotBeEmpty)
			})
		})

		Convey("When persist=false is requested", func() {
			body, ct := multipartBody(map[string]string{"url": "https://example.com"}, nil)
			req := httptest.NewRequest(http.MethodPost, "/api/process?persist=false", body)
			req.Header.Set("Content-Type", ct)
			w := do(mux, req)

			Convey("Then the record itself is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.persist, ShouldBeFalse)
				var got map[string]interface{}
				So(json.Unmarshal(w.Body.Bytes(), &got), ShouldBeNil)
				So(got["title"], ShouldEqual, "Beach Volleyball")
				So(got, ShouldContainKey, "datetime")
				So(got["datetime"], ShouldBeNil)
				So(got["type"], ShouldEqual, "social")
			})
		})

		Convey("When a url-encoded form is posted", func() {
			req := httptest.NewRequest(http.MethodPost, "/api/process", strings.NewReader("url=https%3A%2F%2Fexample.com"))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			w := do(mux, req)

			Convey("Then the url is still read", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				So(deps.lastIn.URL, ShouldEqual, "https://example.com")
			})
		})

		Convey("When the body is not a form", func() {
			deps.procErr = errs.NewKind("test", errs.ErrNoText)
			req := httptest.NewRequest(http.MethodPost, "/api/process", strings.NewReader("garbage"))
			req.Header.Set("Content-Type", "multipart/form-data; boundary=nope")
			w := do(mux, req)

			Convey("Then no inputs reach the pipeline and 400 is returned", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(errorBody(w), ShouldEqual, "No text extracted")
				So(deps.lastIn.URL, ShouldBeEmpty)
				So(deps.lastIn.Image, ShouldBeNil)
			})
		})

		Convey("When the upload exceeds the size cap", func() {
			body, ct := multipartBody(map[string]string{"url": "https://example.com"}, bytes.Repeat([]byte("x"), 2<<20))
			req := httptest.NewRequest(http.MethodPost, "/api/process", body)
			req.Header.Set("Content-Type", ct)
			w := do(mux, req)

			Convey("Then 413 is returned and the pipeline is not run", func() {
				So(w.Code, ShouldEqual, http.StatusRequestEntityTooLarge)
				So(errorBody(w), ShouldEqual, "Request body too large")
				So(deps.lastIn.URL, ShouldBeEmpty)
			})
		})
	})
}

func TestProcess_PostFailures(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"no text", errs.NewKind("t", errs.ErrNoText), http.StatusBadRequest, "No text extracted"},
		{"non-json reply", errs.NewKind("t", errs.ErrNonJSONResponse), http.StatusInternalServerError, "OpenAI response is not in JSON format"},
		{"broken json", errs.WrapKind("t", errs.ErrResponseParse, errors.New("eof")), http.StatusInternalServerError, "Error parsing response from OpenAI"},
		{"ocr outage", errs.WrapKind("t", errs.ErrOCR, errors.New("503")), http.StatusInternalServerError, "Failed to process request"},
		{"fetch timeout", errs.WrapKind("t", errs.ErrFetch, context.DeadlineExceeded), http.StatusInternalServerError, "Failed to process request"},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError, "Failed to process request"},
	}

	Convey("Given pipeline failures", t, func() {
		for _, tc := range cases {
			Convey("When the pipeline fails with "+tc.name, func() {
				mux := newMux(&mockDependencies{procErr: tc.err})
				body, ct := multipartBody(map[string]string{"url": "https://example.com"}, nil)
				req := httptest.NewRequest(http.MethodPost, "/api/process", body)
				req.Header.Set("Content-Type", ct)
				w := do(mux, req)

				Convey("Then the mapped status and message are returned", func() {
					So(w.Code, ShouldEqual, tc.status)
					So(errorBody(w), ShouldEqual, tc.msg)
				})
			})
		}
	})
}

func TestProcess_List(t *testing.T) {
	Convey("Given stored plans", t, func() {
		created := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
		deps := &mockDependencies{plans: []model.Plan{{
			ID:        "p1",
			CreatedAt: created,
			Event:     model.NewEventRecord(),
		}}}
		mux := newMux(deps)

		Convey("When listing", func() {
			w := do(mux, httptest.NewRequest(http.MethodGet, "/api/process", nil))

			Convey("Then the plans are returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var got []map[string]interface{}
				So(json.Unmarshal(w.Body.Bytes(), &got), ShouldBeNil)
				So(got, ShouldHaveLength, 1)
				So(got[0]["_id"], ShouldEqual, "p1")
				So(got[0]["createdAt"], ShouldEqual, "2024-06-01T12:00:00.000Z")
			})
		})

		Convey("When the store fails", func() {
			deps.listErr = errs.WrapKind("t", errs.ErrStore, errors.New("down"))
			w := do(mux, httptest.NewRequest(http.MethodGet, "/api/process", nil))

			Convey("Then a generic 500 is returned", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				So(errorBody(w), ShouldEqual, "Failed to fetch plans")
			})
		})
	})
}

func TestProcess_Delete(t *testing.T) {
	Convey("Given the delete endpoint", t, func() {
		deps := &mockDependencies{}
		mux := newMux(deps)
		del := func(body string) *httptest.ResponseRecorder {
			return do(mux, httptest.NewRequest(http.MethodDelete, "/api/process", strings.NewReader(body)))
		}

		Convey("When the body is not JSON", func() {
			w := del("id=1")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(errorBody(w), ShouldEqual, "Invalid plan ID")
		})

		Convey("When the id is malformed", func() {
			deps.deleteErr = errs.NewKind("t", errs.ErrInvalidID)
			w := del(`{"id":"12345"}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(errorBody(w), ShouldEqual, "Invalid plan ID")
			So(deps.deletedID, ShouldEqual, "12345")
		})

		Convey("When the plan does not exist", func() {
			deps.deleteErr = errs.NewKind("t", errs.ErrNotFound)
			w := del(`{"id":"65f1c2a9e8d7b4c3a9e6f0a1"}`)
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(errorBody(w), ShouldEqual, "Plan not found")
		})

		Convey("When the store fails", func() {
			deps.deleteErr = errs.WrapKind("t", errs.ErrStore, errors.New("down"))
			w := del(`{"id":"65f1c2a9e8d7b4c3a9e6f0a1"}`)
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(errorBody(w), ShouldEqual, "Failed to delete plan")
		})

		Convey("When the plan exists", func() {
			w := del(`{"id":"65f1c2a9e8d7b4c3a9e6f0a1"}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"success":true`)
		})
	})
}

func TestProcess_MethodNotAllowed(t *testing.T) {
	Convey("Given the process endpoint", t, func() {
		mux := newMux(&mockDependencies{})

		Convey("When PUT is used", func() {
			w := do(mux, httptest.NewRequest(http.MethodPut, "/api/process", nil))

			Convey("Then 405 lists the allowed methods", func() {
				So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
				So(w.Header().Get("Allow"), ShouldEqual, "GET, POST, DELETE")
				So(errorBody(w), ShouldEqual, "Method Not Allowed")
			})
		})
	})
}

func TestOperationalRoutes(t *testing.T) {
	Convey("Given the operational routes", t, func() {
		deps := &mockDependencies{}
		mux := newMux(deps)

		Convey("When the store answers", func() {
			w := do(mux, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"status":"ok"`)
		})

		Convey("When the store is down", func() {
			deps.pingErr = errors.New("down")
			w := do(mux, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			So(w.Body.String(), ShouldContainSubstring, `"status":"unavailable"`)
		})

		Convey("When requesting stats", func() {
			w := do(mux, httptest.NewRequest(http.MethodGet, "/stats", nil))
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"store":"memory"`)
		})

		Convey("When scraping metrics after a request", func() {
			do(mux, httptest.NewRequest(http.MethodGet, "/stats", nil))
			w := do(mux, httptest.NewRequest(http.MethodGet, "/metrics", nil))
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "tapdin_planner_http_requests_total")
		})

		Convey("When a caller supplies a request id", func() {
			req := httptest.NewRequest(http.MethodGet, "/stats", nil)
			req.Header.Set(api.RequestIDHeader, "req-42")
			w := do(mux, req)
			So(w.Header().Get(api.RequestIDHeader), ShouldEqual, "req-42")
		})
	})
}

type stubExtractor struct{}

func (stubExtractor) Extract(_ context.Context, in content.Input) (model.RawContent, model.Meta, error) {
	if in.URL == "" {
		return "", model.Meta{}, errs.NewKind("stub", errs.ErrNoText)
	}
	return model.RawContent(in.URL), model.Meta{Source: model.SourceURL, SourceURL: in.URL}, nil
}

type stubNormalizer struct{}

func (stubNormalizer) Normalize(_ context.Context, raw model.RawContent) (model.EventRecord, error) {
	rec := model.NewEventRecord()
	rec.Title = string(raw)
	return rec, nil
}

func TestProcess_AgainstService(t *testing.T) {
	Convey("Given the API over a real service and memory store", t, func() {
		ctx := context.Background()
		clock := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
		store := repository.NewMemoryStore(ctx, repository.WithClock(func() time.Time {
			clock = clock.Add(time.Minute)
			return clock
		}))
		defer store.Close(ctx)
		mux := newMux(service.New(stubExtractor{}, stubNormalizer{}, store))

		post := func(url string) string {
			body, ct := multipartBody(map[string]string{"url": url}, nil)
			req := httptest.NewRequest(http.MethodPost, "/api/process", body)
			req.Header.Set("Content-Type", ct)
			w := do(mux, req)
			So(w.Code, ShouldEqual, http.StatusCreated)
			var out struct {
				ID string `json:"id"`
			}
			So(json.Unmarshal(w.Body.Bytes(), &out), ShouldBeNil)
			return out.ID
		}
		list := func() []model.Plan {
			w := do(mux, httptest.NewRequest(http.MethodGet, "/api/process", nil))
			So(w.Code, ShouldEqual, http.StatusOK)
			var plans []model.Plan
			So(json.Unmarshal(w.Body.Bytes(), &plans), ShouldBeNil)
			return plans
		}

		Convey("When nothing is submitted", func() {
			w := do(mux, httptest.NewRequest(http.MethodPost, "/api/process", nil))
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(errorBody(w), ShouldEqual, "No text extracted")
			So(list(), ShouldBeEmpty)
		})

		Convey("When three plans are submitted", func() {
			id1, id2, id3 := post("https://a.example"), post("https://b.example"), post("https://c.example")

			Convey("Then they list newest first", func() {
				plans := list()
				So(plans, ShouldHaveLength, 3)
				So([]string{plans[0].ID, plans[1].ID, plans[2].ID}, ShouldResemble, []string{id3, id2, id1})
			})

			Convey("Then deleting one removes it from the list", func() {
				w := do(mux, httptest.NewRequest(http.MethodDelete, "/api/process", strings.NewReader(`{"id":"`+id2+`"}`)))
				So(w.Code, ShouldEqual, http.StatusOK)
				plans := list()
				So(plans, ShouldHaveLength, 2)
				So(plans[0].ID, ShouldEqual, id3)
				So(plans[1].ID, ShouldEqual, id1)

				w = do(mux, httptest.NewRequest(http.MethodDelete, "/api/process", strings.NewReader(`{"id":"`+id2+`"}`)))
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}
