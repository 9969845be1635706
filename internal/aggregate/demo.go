package aggregate

import (
	"embed"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/parut/agri-advisor/internal/model"
	"github.com/parut/agri-advisor/internal/upstream"
)

//go:embed demo/*.yaml
var demoFS embed.FS

// demoBundle is one scripted dataset: the three raw source payloads a demo
// request feeds through the same normalize/merge path as live data.
type demoBundle struct {
	KMA       *upstream.Bundle `yaml:"kma"`
	OpenMeteo *upstream.Bundle `yaml:"open_meteo"`
	NPMS      *upstream.Bundle `yaml:"npms"`
}

var (
	demoOnce    sync.Once
	demoBundles map[string]*demoBundle
)

// demoBundleFor returns the scripted bundle for a (region, crop) pair, or
// nil when none exists. Fixtures are keyed by file name:
// "<region>_<crop>.yaml".
func demoBundleFor(region string, crop model.Crop) *demoBundle {
	demoOnce.Do(loadDemoBundles)
	return demoBundles[strings.ToLower(region)+"_"+string(crop)]
}

func loadDemoBundles() {
	demoBundles = map[string]*demoBundle{}

	entries, err := demoFS.ReadDir("demo")
	if err != nil {
		zap.L().Error("aggregate: read demo fixtures", zap.Error(err))
		return
	}
	for _, entry := range entries {
		raw, err := demoFS.ReadFile("demo/" + entry.Name())
		if err != nil {
			zap.L().Error("aggregate: read demo fixture", zap.String("file", entry.Name()), zap.Error(err))
			continue
		}
		var b demoBundle
		if err := yaml.Unmarshal(raw, &b); err != nil {
			zap.L().Error("aggregate: parse demo fixture", zap.String("file", entry.Name()), zap.Error(err))
			continue
		}
		key := strings.TrimSuffix(entry.Name(), ".yaml")
		demoBundles[key] = &b
	}
}

// DemoProfiles lists the (region, crop) pairs with scripted bundles.
func DemoProfiles() []string {
	demoOnce.Do(loadDemoBundles)
	out := make([]string, 0, len(demoBundles))
	for key := range demoBundles {
		out = append(out, strings.ReplaceAll(key, "_", "/"))
	}
	sort.Strings(out)
	return out
}
