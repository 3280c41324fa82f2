package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestDefaults(t *testing.T) {
	cfg := New()
	test.That(t, cfg.MinDepth(), test.ShouldEqual, float32(0.5))
	test.That(t, cfg.MaxDepth(), test.ShouldEqual, float32(4.5))
	test.That(t, cfg.EnableBilateralFilter(), test.ShouldBeTrue)
	test.That(t, cfg.EnableEdgeAwareFilter(), test.ShouldBeTrue)
	test.That(t, cfg.Validate(), test.ShouldBeNil)
}

func TestSetters(t *testing.T) {
	cfg := New()
	test.That(t, cfg.SetMinDepth(1.0), test.ShouldBeNil)
	test.That(t, cfg.SetMaxDepth(5.0), test.ShouldBeNil)
	cfg.SetEnableBilateralFilter(false)
	cfg.SetEnableEdgeAwareFilter(false)

	test.That(t, cfg.MinDepth(), test.ShouldEqual, float32(1.0))
	test.That(t, cfg.MaxDepth(), test.ShouldEqual, float32(5.0))
	test.That(t, cfg.EnableBilateralFilter(), test.ShouldBeFalse)
	test.That(t, cfg.EnableEdgeAwareFilter(), test.ShouldBeFalse)
}

func TestSetterValidation(t *testing.T) {
	t.Run("min depth must be positive", func(t *testing.T) {
		cfg := New()
		err := cfg.SetMinDepth(0.0)
		test.That(t, errors.Is(err, ErrInvalidConfig), test.ShouldBeTrue)
		test.That(t, cfg.SetMinDepth(-1), test.ShouldNotBeNil)
		test.That(t, cfg.MinDepth(), test.ShouldEqual, DefaultMinDepth)
	})

	t.Run("min depth below max depth", func(t *testing.T) {
		cfg := New()
		test.That(t, cfg.SetMaxDepth(2.0), test.ShouldBeNil)
		err := cfg.SetMinDepth(3.0)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "less than max depth")
		test.That(t, cfg.SetMinDepth(2.0), test.ShouldNotBeNil)
		test.That(t, cfg.MinDepth(), test.ShouldEqual, DefaultMinDepth)
	})

	t.Run("max depth above min depth", func(t *testing.T) {
		cfg := New()
		test.That(t, cfg.SetMinDepth(3.0), test.ShouldBeNil)
		err := cfg.SetMaxDepth(2.0)
		test.That(t, errors.Is(err, ErrInvalidConfig), test.ShouldBeTrue)
		test.That(t, cfg.SetMaxDepth(3.0), test.ShouldNotBeNil)
		test.That(t, cfg.MaxDepth(), test.ShouldEqual, DefaultMaxDepth)
	})
}

func TestValueSemantics(t *testing.T) {
	original := New()
	applied := original
	test.That(t, original.SetMaxDepth(8), test.ShouldBeNil)
	original.SetEnableEdgeAwareFilter(false)

	test.That(t, applied.MaxDepth(), test.ShouldEqual, DefaultMaxDepth)
	test.That(t, applied.EnableEdgeAwareFilter(), test.ShouldBeTrue)
}

func TestJSON(t *testing.T) {
	cfg := New()
	test.That(t, cfg.SetMaxDepth(6), test.ShouldBeNil)
	cfg.SetEnableBilateralFilter(false)

	data, err := json.Marshal(cfg)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(data), test.ShouldEqual,
		`{"min_depth":0.5,"max_depth":6,"enable_bilateral_filter":false,"enable_edge_aware_filter":true}`)

	var partial Config
	test.That(t, json.Unmarshal([]byte(`{"max_depth": 3}`), &partial), test.ShouldBeNil)
	test.That(t, partial.MinDepth(), test.ShouldEqual, DefaultMinDepth)
	test.That(t, partial.MaxDepth(), test.ShouldEqual, float32(3))
	test.That(t, partial.EnableBilateralFilter(), test.ShouldBeTrue)

	var bad Config
	err = json.Unmarshal([]byte(`{"min_depth": 5, "max_depth": 1}`), &bad)
	test.That(t, errors.Is(err, ErrInvalidConfig), test.ShouldBeTrue)
}

func TestFromJSONFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "depth.json")
	err := os.WriteFile(path, []byte(`{"min_depth": 0.8, "enable_edge_aware_filter": false}`), 0o600)
	test.That(t, err, test.ShouldBeNil)

	cfg, err := FromJSONFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.MinDepth(), test.ShouldEqual, float32(0.8))
	test.That(t, cfg.MaxDepth(), test.ShouldEqual, DefaultMaxDepth)
	test.That(t, cfg.EnableEdgeAwareFilter(), test.ShouldBeFalse)

	_, err = FromJSONFile(filepath.Join(dir, "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "error opening JSON file")
}
