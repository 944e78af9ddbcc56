package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/devicelab-dev/appium-harness/pkg/core"
	"github.com/devicelab-dev/appium-harness/pkg/driver/appium"
	"github.com/devicelab-dev/appium-harness/pkg/logger"
)

// Capturer writes failure artifacts of a live session to Dir.
type Capturer struct {
	Dir    string
	Config core.ArtifactConfig
	// NewID names one capture; all its files share the id. Defaults to a UUID.
	NewID func() string
}

// NewCapturer returns a capturer taking screenshots and UI trees into dir.
func NewCapturer(dir string) *Capturer {
	return &Capturer{Dir: dir, Config: core.DefaultArtifactConfig(), NewID: uuid.NewString}
}

// Capture fetches the screenshot and page source concurrently and writes
// <name>_<id>.png, .xml and .json (parsed hierarchy). Whatever was fetched
// is written even when the other fetch failed; the first error is returned.
func (c *Capturer) Capture(src core.ArtifactSource, name string) ([]core.Attachment, error) {
	if err := ensureDir(c.Dir); err != nil {
		return nil, fmt.Errorf("create artifacts dir: %w", err)
	}
	newID := c.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	base := fmt.Sprintf("%s_%s", name, newID())

	var png []byte
	var source string
	var g errgroup.Group
	if c.Config.Screenshot {
		g.Go(func() error {
			data, err := src.Screenshot()
			if err != nil {
				return fmt.Errorf("screenshot: %w", err)
			}
			png = data
			return nil
		})
	}
	if c.Config.UIHierarchy {
		g.Go(func() error {
			xml, err := src.Source()
			if err != nil {
				return fmt.Errorf("page source: %w", err)
			}
			source = xml
			return nil
		})
	}
	fetchErr := g.Wait()

	var atts []core.Attachment
	write := func(file string, data []byte, build func(string, []byte) core.Attachment) error {
		if err := os.WriteFile(filepath.Join(c.Dir, file), data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", file, err)
		}
		atts = append(atts, build(file, data))
		logger.Info("artifact saved: %s", filepath.Join(c.Dir, file))
		return nil
	}

	if png != nil {
		if err := write(base+".png", png, core.NewScreenshotAttachment); err != nil {
			return atts, err
		}
	}
	if source != "" {
		if err := write(base+".xml", []byte(source), core.NewSourceAttachment); err != nil {
			return atts, err
		}
		if tree, err := appium.ParsePageSource(source); err != nil {
			logger.Warn("hierarchy not written: %v", err)
		} else if data, err := json.MarshalIndent(tree, "", "  "); err == nil {
			if err := write(base+".json", data, core.NewHierarchyAttachment); err != nil {
				return atts, err
			}
		}
	}
	return atts, fetchErr
}
