package cli

import (
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/devicelab-dev/appium-harness/pkg/capability"
	"github.com/devicelab-dev/appium-harness/pkg/config"
	"github.com/devicelab-dev/appium-harness/pkg/driver/appium"
	"github.com/devicelab-dev/appium-harness/pkg/locator"
	"github.com/devicelab-dev/appium-harness/pkg/logger"
	"github.com/devicelab-dev/appium-harness/pkg/report"
	"github.com/devicelab-dev/appium-harness/pkg/session"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
)

var skipStartupFlag = &cli.BoolFlag{
	Name:  "skip-startup",
	Usage: "Do not drive the app past splash and onboarding after launch",
}

var sessionCommand = &cli.Command{
	Name:  "session",
	Usage: "Open a session, settle the app, and close it",
	Description: `Open an Appium session with the built profile, wait for the app to render,
walk past splash and onboarding to the landing screen, then close. With
--report a run record (and optionally Allure results) is written; failure
artifacts land in <report>/assets.

Examples:
  appium-harness session
  appium-harness -p ios -e ci session --report reports --allure
  appium-harness session --screenshot --report out --flatten`,
	Flags: []cli.Flag{
		skipStartupFlag,
		&cli.StringFlag{
			Name:  "name",
			Usage: "Run name used in the report",
			Value: "session",
		},
		&cli.StringFlag{
			Name:  "report",
			Usage: "Report base directory; a timestamped subfolder is created unless --flatten",
		},
		&cli.BoolFlag{
			Name:  "flatten",
			Usage: "Write the report directly into --report",
		},
		&cli.BoolFlag{
			Name:  "allure",
			Usage: "Also write allure-results into the report directory",
		},
		&cli.BoolFlag{
			Name:  "screenshot",
			Usage: "Capture artifacts before closing even when the run passed",
		},
	},
	Action: runSession,
}

var findCommand = &cli.Command{
	Name:      "find",
	Usage:     "Resolve an element and print every locator attempt",
	ArgsUsage: "<element | descriptor...>",
	Description: `Open a session and resolve one element. The argument is a catalog or
built-in element name, or one or more descriptors in text form tried in order.

Examples:
  appium-harness find login_submit
  appium-harness find 'instrumented:key=login_submit' 'native@android:text=Sign In'
  appium-harness find --tap --timeout 3s onboarding_skip`,
	Flags: []cli.Flag{
		skipStartupFlag,
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Per-descriptor timeout (default: settings waits.find)",
		},
		&cli.BoolFlag{
			Name:  "tap",
			Usage: "Tap the element once resolved",
		},
	},
	Action: runFind,
}

var hierarchyCommand = &cli.Command{
	Name:  "hierarchy",
	Usage: "Print the view hierarchy of the app under test",
	Description: `Open a session and print the parsed page source in JSON or CSV format.

Examples:
  appium-harness hierarchy
  appium-harness hierarchy --compact -p ios`,
	Flags: []cli.Flag{
		skipStartupFlag,
		&cli.BoolFlag{
			Name:  "compact",
			Usage: "Output in CSV format",
		},
	},
	Action: runHierarchy,
}

// sessionEnv is everything a session-backed command needs.
type sessionEnv struct {
	settings *config.Settings
	profile  capability.Profile
	manager  *session.Manager
}

func prepareSession(c *cli.Context) (*sessionEnv, error) {
	settings, err := loadSettings(c)
	if err != nil {
		return nil, err
	}
	profile, err := buildProfile(c, settings)
	if err != nil {
		return nil, err
	}
	catalog, err := loadCatalog(settings)
	if err != nil {
		return nil, err
	}
	return &sessionEnv{
		settings: settings,
		profile:  profile,
		manager:  newManager(c, settings, catalog),
	}, nil
}

func runSession(c *cli.Context) error {
	env, err := prepareSession(c)
	if err != nil {
		return err
	}

	var outputDir string
	if c.IsSet("report") || c.Bool("allure") {
		outputDir, err = resolveOutputDir(c.String("report"), c.Bool("flatten"))
		if err != nil {
			return err
		}
		env.manager.Capture = report.NewCapturer(filepath.Join(outputDir, "assets"))
	}

	runID := uuid.NewString()
	env.manager.NewRunID = func() string { return runID }

	rec := report.Record{
		ID:        runID,
		Name:      c.String("name"),
		Status:    report.StatusRunning,
		StartTime: time.Now(),
		Profile:   env.profile.Snapshot(),
	}

	var opened *session.Session
	runErr := env.manager.Run(env.profile, func(s *session.Session) error {
		opened = s
		rec.Session = s.Handle
		info := s.Info()
		writeOut(c, "session %s ready on %s %s (%s)\n", s.Handle, info.Platform, info.OSVersion, info.DeviceName)
		if c.Bool("screenshot") && env.manager.Capture != nil {
			atts, err := env.manager.Capture.Capture(s, s.RunID)
			s.Attachments = append(s.Attachments, atts...)
			if err != nil {
				logger.Warn("artifact capture incomplete: %v", err)
			}
		}
		return nil
	})

	rec.Finish(time.Now(), runErr)
	if opened != nil {
		rec.Device = opened.Info()
		rec.Attachments = opened.Attachments
	}
	if outputDir != "" {
		if err := writeReport(c, outputDir, rec); err != nil {
			return err
		}
	}

	if runErr != nil {
		return runErr
	}
	writeOut(c, "session closed after %dms\n", rec.Duration)
	return nil
}

func writeReport(c *cli.Context, outputDir string, rec report.Record) error {
	w, err := report.NewWriter(outputDir)
	if err != nil {
		return fmt.Errorf("failed to open report: %w", err)
	}
	if err := w.Write(rec); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if c.Bool("allure") {
		if err := report.GenerateAllure(outputDir, filepath.Join(outputDir, "assets")); err != nil {
			return fmt.Errorf("failed to write allure results: %w", err)
		}
	}
	writeOut(c, "report written to %s\n", outputDir)
	return nil
}

// elementArg resolves the find argument: a catalog name, else descriptors.
func elementArg(catalog *locator.Catalog, args []string) (locator.Element, error) {
	if len(args) == 0 {
		return locator.Element{}, errors.New("an element name or descriptor is required")
	}
	if len(args) == 1 && catalog != nil {
		if el, ok := catalog.Element(args[0]); ok {
			return el, nil
		}
	}
	el := locator.Element{Name: "adhoc"}
	for _, a := range args {
		d, err := locator.Parse(a)
		if err != nil {
			return locator.Element{}, fmt.Errorf("%q is neither a known element nor a descriptor: %w", a, err)
		}
		el.Descriptors = append(el.Descriptors, d)
	}
	return el, nil
}

func runFind(c *cli.Context) error {
	env, err := prepareSession(c)
	if err != nil {
		return err
	}
	el, err := elementArg(env.manager.Catalog, c.Args().Slice())
	if err != nil {
		return err
	}
	timeout := c.Duration("timeout")
	if timeout <= 0 {
		timeout = env.settings.Waits.Find.Std()
	}

	return env.manager.Run(env.profile, func(s *session.Session) error {
		h, err := s.Find(el, timeout)
		var nf *locator.NotFoundError
		switch {
		case errors.As(err, &nf):
			printAttempts(c, nf.Attempts)
			return err
		case err != nil:
			return err
		}

		printAttempts(c, h.Attempts)
		writeOut(c, "found %s via %s\n", h.ID, h.Descriptor)
		if c.Bool("tap") {
			if err := s.Tap(el, timeout); err != nil {
				return err
			}
			writeOut(c, "tapped %s\n", el.Name)
		}
		return nil
	})
}

func printAttempts(c *cli.Context, attempts []locator.Attempt) {
	for i, a := range attempts {
		writeOut(c, "%d. %s\n", i+1, a)
	}
}

func runHierarchy(c *cli.Context) error {
	env, err := prepareSession(c)
	if err != nil {
		return err
	}

	return env.manager.Run(env.profile, func(s *session.Session) error {
		src, err := s.Source()
		if err != nil {
			return err
		}
		tree, err := appium.ParsePageSource(src)
		if err != nil {
			return fmt.Errorf("failed to parse page source: %w", err)
		}
		if c.Bool("compact") {
			return writeHierarchyCSV(c, tree)
		}
		return printJSON(c, tree)
	})
}

func writeHierarchyCSV(c *cli.Context, tree *appium.PageSource) error {
	w := csv.NewWriter(c.App.Writer)
	_ = w.Write([]string{"depth", "class", "id", "text", "x", "y", "width", "height", "enabled", "displayed"})
	for _, e := range tree.Elements {
		class, id := e.ClassName, e.ResourceID
		if tree.Platform == "ios" {
			class, id = e.Type, e.Name
		}
		_ = w.Write([]string{
			strconv.Itoa(e.Depth), class, id, e.Visible(),
			strconv.Itoa(e.Bounds.X), strconv.Itoa(e.Bounds.Y),
			strconv.Itoa(e.Bounds.Width), strconv.Itoa(e.Bounds.Height),
			strconv.FormatBool(e.Enabled), strconv.FormatBool(e.Displayed),
		})
	}
	w.Flush()
	return w.Error()
}
