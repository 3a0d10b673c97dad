package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/tfbuffer/config"
	"go.viam.com/tfbuffer/fixtures"
	"go.viam.com/tfbuffer/logging"
	"go.viam.com/tfbuffer/referenceframe"
	"go.viam.com/tfbuffer/ros"
)

const (
	metadataLogger = "logger"
	metadataConfig = "config"
)

var (
	defaultGeneratorConfig = fixtures.DefaultGeneratorConfig()
	defaultVerifyConfig    = fixtures.DefaultVerifyConfig()
)

func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}

// setupAction reads the config and builds a logger writing to the app's error output.
func setupAction(c *cli.Context) error {
	logger := logging.NewBlankLogger("tfbuffer")
	logger.AddAppender(logging.NewWriterAppender(c.App.ErrWriter))

	cfg := config.Default()
	if path := c.String(flagConfig); path != "" {
		var err error
		if cfg, err = config.Read(path, logger); err != nil {
			return err
		}
	}
	cfg.Log.Apply(logger, c.Bool(flagDebug))
	logging.ReplaceGlobal(logger)

	if c.App.Metadata == nil {
		c.App.Metadata = map[string]interface{}{}
	}
	c.App.Metadata[metadataLogger] = logger
	c.App.Metadata[metadataConfig] = cfg
	return nil
}

func syncAction(c *cli.Context) error {
	if logger, ok := c.App.Metadata[metadataLogger].(logging.Logger); ok {
		//nolint:errcheck
		logger.Sync()
	}
	return nil
}

func loggerFrom(c *cli.Context) logging.Logger {
	if logger, ok := c.App.Metadata[metadataLogger].(logging.Logger); ok {
		return logger
	}
	return logging.Global()
}

func configFrom(c *cli.Context) *config.Config {
	if cfg, ok := c.App.Metadata[metadataConfig].(*config.Config); ok {
		return cfg
	}
	return config.Default()
}

// loadBuffer builds a buffer from the config and fills it with a transforms file. Without a
// configured cache duration the buffer keeps every record of the file.
func loadBuffer(c *cli.Context) (*referenceframe.Buffer, error) {
	logger := loggerFrom(c)
	bufferCfg := configFrom(c).Buffer
	if c.IsSet(flagCacheDuration) {
		bufferCfg.CacheDuration = c.Duration(flagCacheDuration)
		if err := bufferCfg.Validate(flagCacheDuration); err != nil {
			return nil, err
		}
	}
	// fixture files are replayed whole unless a window was asked for
	bufferCfg.CacheDuration = bufferCfg.CacheDurationOr(fixtures.ReplayCacheDuration)
	records, err := fixtures.ReadFile[fixtures.TransformRecord](c.Path(flagTransforms))
	if err != nil {
		return nil, err
	}
	buffer := bufferCfg.NewBuffer(logger.Sublogger("buffer"))
	set := fixtures.Set{Transforms: records}
	if err := set.Load(buffer, c.Path(flagTransforms)); err != nil {
		return nil, err
	}
	return buffer, nil
}

// GenerateAction is the corresponding Action for 'generate'.
func GenerateAction(c *cli.Context) error {
	cfg := fixtures.DefaultGeneratorConfig()
	cfg.Seed = c.Int64(flagSeed)
	cfg.Frames = c.Int(flagFrames)
	cfg.Updates = c.Int(flagUpdates)
	cfg.Queries = c.Int(flagQueries)

	set, err := fixtures.NewGenerator(cfg, loggerFrom(c)).Generate()
	if err != nil {
		return err
	}
	if err := set.Write(c.Path(flagOut)); err != nil {
		return errors.Wrap(err, "could not write fixtures")
	}
	printf(c.App.Writer, "wrote %d transforms, %d lookups and %d full lookups to %s",
		len(set.Transforms), len(set.Inputs), len(set.FullInputs), c.Path(flagOut))
	return nil
}

// ReplayAction is the corresponding Action for 'replay'.
func ReplayAction(c *cli.Context) error {
	rb, err := ros.ReadBag(c.Path(flagBag))
	if err != nil {
		return err
	}
	records, err := ros.TransformsFromBag(rb)
	if err != nil {
		return err
	}

	cfg := fixtures.DefaultGeneratorConfig()
	cfg.Seed = c.Int64(flagSeed)
	cfg.Queries = c.Int(flagQueries)
	set, err := fixtures.NewGenerator(cfg, loggerFrom(c)).Answer(&fixtures.Set{Transforms: records})
	if err != nil {
		return err
	}
	if err := set.Write(c.Path(flagOut)); err != nil {
		return errors.Wrap(err, "could not write fixtures")
	}
	printf(c.App.Writer, "wrote %d transforms, %d lookups and %d full lookups to %s",
		len(set.Transforms), len(set.Inputs), len(set.FullInputs), c.Path(flagOut))
	return nil
}

// VerifyAction is the corresponding Action for 'verify'.
func VerifyAction(c *cli.Context) error {
	set, err := fixtures.ReadSet(c.Path(flagDir))
	if err != nil {
		return err
	}
	cfg := fixtures.DefaultVerifyConfig()
	cfg.Tolerance = c.Float64(flagTolerance)
	cfg.Parallelism = c.Int(flagParallel)

	result, err := fixtures.Verify(c.Context, set, cfg, loggerFrom(c))
	printf(c.App.Writer, "checked %d lookups and %d full lookups over %d transforms: %d mismatched, %d failed",
		result.Lookups, result.FullLookups, result.Transforms, result.Mismatches, result.FailedLookups)
	return err
}

func parseStamp(arg, name string) (int64, error) {
	stamp, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "could not parse %s %q", name, arg)
	}
	return stamp, nil
}

// LookupAction is the corresponding Action for 'lookup'.
func LookupAction(c *cli.Context) error {
	if c.NArg() < 2 || c.NArg() > 3 {
		return errors.Errorf("expected <target> <source> [time], got %d arguments", c.NArg())
	}
	target, source := c.Args().Get(0), c.Args().Get(1)
	var stamp int64
	if c.NArg() == 3 {
		var err error
		if stamp, err = parseStamp(c.Args().Get(2), "time"); err != nil {
			return err
		}
	}

	buffer, err := loadBuffer(c)
	if err != nil {
		return err
	}
	var tf referenceframe.TransformStamped
	if fixed := c.String(flagFixed); fixed != "" {
		tf, err = buffer.LookupTransformFull(target, stamp, source, c.Int64(flagSourceTime), fixed)
	} else {
		tf, err = buffer.LookupTransform(target, source, stamp)
	}
	if err != nil {
		return err
	}
	return fixtures.WriteAll(c.App.Writer, []fixtures.LookupOutput{fixtures.OutputFromTransform(tf)})
}

// FramesAction is the corresponding Action for 'frames'.
func FramesAction(c *cli.Context) error {
	buffer, err := loadBuffer(c)
	if err != nil {
		return err
	}
	if c.Bool(flagTable) {
		//nolint:errcheck
		fmt.Fprintln(c.App.Writer, framesTable(buffer.FrameInfos()))
		return nil
	}
	out, err := buffer.AllFramesAsYAML()
	if err != nil {
		return err
	}
	//nolint:errcheck
	fmt.Fprint(c.App.Writer, out)
	return nil
}

// framesTable renders one row per edge with its stored window in seconds.
func framesTable(infos []referenceframe.FrameInfo) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Frame", "Parent", "Static", "Records", "Oldest", "Latest", "Broadcaster"})
	for i, info := range infos {
		oldest, latest := "", ""
		if !info.Static {
			oldest = fmt.Sprintf("%.3f", time.Duration(info.Oldest).Seconds())
			latest = fmt.Sprintf("%.3f", time.Duration(info.Latest).Seconds())
		}
		t.AppendRow(table.Row{i + 1, info.Child, info.Parent, info.Static, info.Length, oldest, latest, info.Authority})
	}
	return t.Render()
}
