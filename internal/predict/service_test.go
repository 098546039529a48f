package predict_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/Brownie44l1/leaf-api/internal/labels"
	"github.com/Brownie44l1/leaf-api/internal/predict"
	"github.com/Brownie44l1/leaf-api/internal/preprocess"
	"github.com/Brownie44l1/leaf-api/internal/remedy"
	"github.com/Brownie44l1/leaf-api/internal/resolver"
	"github.com/Brownie44l1/leaf-api/pkg/xerr"
)

const healthyIndex = 37 // Tomato___healthy

// greenClassifier favours Tomato___healthy for green-dominant images and
// Tomato___Late_blight otherwise.
type greenClassifier struct {
	width int
	calls atomic.Int32
	err   error
}

func (c *greenClassifier) OutputWidth() int { return c.width }

func (c *greenClassifier) Classify(_ context.Context, input []float32) ([]float32, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	var r, g float64
	for i := 0; i < len(input); i += 3 {
		r += float64(input[i])
		g += float64(input[i+1])
	}
	scores := make([]float32, c.width)
	if g > r {
		scores[healthyIndex] = 6
	} else {
		scores[30] = 6
	}
	return scores, nil
}

type countingDoer struct {
	calls atomic.Int32
	next  resolver.Doer
}

func (d *countingDoer) Do(req *http.Request) (*http.Response, error) {
	d.calls.Add(1)
	if d.next == nil {
		return nil, errors.New("network disabled")
	}
	return d.next.Do(req)
}

func leafJPEG(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 200, 150))
	for y := 0; y < 150; y++ {
		for x := 0; x < 200; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newService(t *testing.T, clf *greenClassifier, doer resolver.Doer) *predict.Service {
	t.Helper()
	reg, _ := labels.Reconcile(labels.DefaultCatalog(), clf.width)
	svc, err := predict.NewService(
		resolver.NewWithClient(doer, resolver.Options{UserAgent: "test"}),
		preprocess.New(128, 128, 1),
		clf,
		reg,
		remedy.Default(),
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

var green = color.RGBA{R: 40, G: 170, B: 50, A: 255}

func TestPredictHealthyLeaf(t *testing.T) {
	clf := &greenClassifier{width: 38}
	svc := newService(t, clf, &countingDoer{})

	res, err := svc.Predict(context.Background(), predict.Request{
		ImageBase64: base64.StdEncoding.EncodeToString(leafJPEG(t, green)),
	})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}

	if res.Disease != "Tomato   healthy" {
		t.Errorf("disease: got %q", res.Disease)
	}
	if !strings.Contains(res.Disease, "healthy") {
		t.Errorf("disease should mention healthy: %q", res.Disease)
	}
	if res.Solution != remedy.Default().Lookup("healthy") {
		t.Errorf("solution: got %q", res.Solution)
	}
	if res.Confidence <= 0 || res.Confidence > 100 {
		t.Errorf("confidence out of range: %v", res.Confidence)
	}
}

func TestPredictLabelIsInRegistry(t *testing.T) {
	clf := &greenClassifier{width: 38}
	svc := newService(t, clf, &countingDoer{})

	for _, c := range []color.Color{green, color.RGBA{R: 180, G: 90, B: 20, A: 255}} {
		res, err := svc.PredictBytes(context.Background(), leafJPEG(t, c))
		if err != nil {
			t.Fatal(err)
		}
		found := false
		for _, l := range svc.Labels().All() {
			if predict.DisplayLabel(l) == res.Disease {
				found = true
			}
		}
		if !found {
			t.Errorf("%q is not a registry label", res.Disease)
		}
	}
}

func TestPredictIdempotent(t *testing.T) {
	svc := newService(t, &greenClassifier{width: 38}, &countingDoer{})
	req := predict.Request{ImageBase64: base64.StdEncoding.EncodeToString(leafJPEG(t, green))}

	a, err := svc.Predict(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	b, err := svc.Predict(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if *a != *b {
		t.Errorf("results differ: %+v vs %+v", a, b)
	}
}

func TestPredictBothSourcesUsesInline(t *testing.T) {
	doer := &countingDoer{}
	svc := newService(t, &greenClassifier{width: 38}, doer)

	_, err := svc.Predict(context.Background(), predict.Request{
		ImageURL:    "http://example.invalid/leaf.jpg",
		ImageBase64: base64.StdEncoding.EncodeToString(leafJPEG(t, green)),
	})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if doer.calls.Load() != 0 {
		t.Errorf("fetch calls: got %d, want 0", doer.calls.Load())
	}
}

func TestPredictFromURL(t *testing.T) {
	img := leafJPEG(t, green)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/leaf.jpg" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(img)
	}))
	defer srv.Close()

	doer := &countingDoer{next: srv.Client()}
	svc := newService(t, &greenClassifier{width: 38}, doer)

	res, err := svc.Predict(context.Background(), predict.Request{ImageURL: srv.URL + "/leaf.jpg"})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if !strings.Contains(res.Disease, "healthy") {
		t.Errorf("disease: got %q", res.Disease)
	}

	_, err = svc.Predict(context.Background(), predict.Request{ImageURL: srv.URL + "/gone.jpg"})
	if xerr.KindOf(err) != xerr.KindFetch {
		t.Errorf("404: got %v, want fetch error", err)
	}
	if doer.calls.Load() != 2 {
		t.Errorf("fetch calls: got %d", doer.calls.Load())
	}
}

func TestPredictErrors(t *testing.T) {
	tests := []struct {
		name     string
		clf      *greenClassifier
		req      predict.Request
		wantKind xerr.Kind
	}{
		{
			name:     "no image",
			clf:      &greenClassifier{width: 38},
			req:      predict.Request{},
			wantKind: xerr.KindInput,
		},
		{
			name:     "bad base64",
			clf:      &greenClassifier{width: 38},
			req:      predict.Request{ImageBase64: "%%%"},
			wantKind: xerr.KindDecode,
		},
		{
			name:     "not an image",
			clf:      &greenClassifier{width: 38},
			req:      predict.Request{ImageBase64: base64.StdEncoding.EncodeToString([]byte("corrupt payload"))},
			wantKind: xerr.KindDecode,
		},
		{
			name:     "classifier failure",
			clf:      &greenClassifier{width: 38, err: errors.New("session run failed")},
			wantKind: xerr.KindInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newService(t, tt.clf, &countingDoer{})
			req := tt.req
			if tt.name == "classifier failure" {
				req.ImageBase64 = base64.StdEncoding.EncodeToString(leafJPEG(t, green))
			}
			_, err := svc.Predict(context.Background(), req)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := xerr.KindOf(err); got != tt.wantKind {
				t.Errorf("kind: got %v, want %v (%v)", got, tt.wantKind, err)
			}
		})
	}
}

type fixedClassifier struct {
	width  int
	scores []float32
}

func (c fixedClassifier) OutputWidth() int { return c.width }
func (c fixedClassifier) Classify(context.Context, []float32) ([]float32, error) {
	return c.scores, nil
}

func TestPredictScoreWidthMismatchIsInternal(t *testing.T) {
	reg, _ := labels.Reconcile(labels.DefaultCatalog(), 3)
	svc, err := predict.NewService(
		resolver.NewWithClient(&countingDoer{}, resolver.Options{}),
		preprocess.New(8, 8, 1),
		fixedClassifier{width: 3, scores: []float32{1, 2}},
		reg,
		remedy.Default(),
	)
	if err != nil {
		t.Fatal(err)
	}

	_, err = svc.PredictBytes(context.Background(), leafJPEG(t, green))
	if xerr.KindOf(err) != xerr.KindInternal {
		t.Errorf("got %v, want internal error", err)
	}
}

func TestNewServiceRejectsWidthMismatch(t *testing.T) {
	reg, _ := labels.Reconcile(labels.DefaultCatalog(), 38)
	_, err := predict.NewService(
		resolver.NewWithClient(&countingDoer{}, resolver.Options{}),
		preprocess.New(8, 8, 1),
		fixedClassifier{width: 40},
		reg,
		remedy.Default(),
	)
	if err == nil {
		t.Error("expected width mismatch error")
	}
}

func TestPaddedLabelUsesDefaultRemedy(t *testing.T) {
	scores := make([]float32, 40)
	scores[39] = 10
	reg, _ := labels.Reconcile(labels.DefaultCatalog(), 40)
	svc, err := predict.NewService(
		resolver.NewWithClient(&countingDoer{}, resolver.Options{}),
		preprocess.New(8, 8, 1),
		fixedClassifier{width: 40, scores: scores},
		reg,
		remedy.Default(),
	)
	if err != nil {
		t.Fatal(err)
	}

	res, err := svc.PredictBytes(context.Background(), leafJPEG(t, green))
	if err != nil {
		t.Fatal(err)
	}
	if res.Disease != "Unknown class 39" || res.Solution != remedy.DefaultAdvice {
		t.Errorf("got %+v", res)
	}
}

func TestAssemble(t *testing.T) {
	res := predict.Assemble("Corn_(maize)___Common_rust_", 87.5, "Apply sulfur.")
	if res.Disease != "Corn (maize)   Common rust " {
		t.Errorf("disease: got %q", res.Disease)
	}
	if res.Confidence != 87.5 || res.Solution != "Apply sulfur." {
		t.Errorf("got %+v", res)
	}
}
