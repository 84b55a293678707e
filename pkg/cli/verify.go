package cli

import (
	"flag"
	"fmt"
	"path/filepath"

	"github.com/platinummonkey/pluginsync/pkg/installer"
	"github.com/platinummonkey/pluginsync/pkg/integrity"
)

func (a *app) newVerifyCommand() *Command {
	cmd := &Command{
		Name:        "verify",
		Description: "Check an artifact on disk against a SHA-256 digest",
		Flags:       flag.NewFlagSet("verify", flag.ContinueOnError),
		Run:         a.runVerify,
	}
	bindVerifyFlags(cmd.Flags)
	return cmd
}

type verifyFlags struct {
	file       *string
	digest     *string
	plugin     *string
	catalogURL *string
}

func bindVerifyFlags(fs *flag.FlagSet) verifyFlags {
	return verifyFlags{
		file:       fs.String("file", "", "Artifact to verify"),
		digest:     fs.String("sha256", "", "Expected base64 SHA-256 digest"),
		plugin:     fs.String("plugin", "", "Verify the installed artifact of this plugin against the catalog"),
		catalogURL: fs.String("catalog", "", "Catalog URL (overrides configuration)"),
	}
}

func (a *app) runVerify(args []string) error {
	ctx, stop := signalContext()
	defer stop()

	s, err := a.session(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	flags := flag.NewFlagSet("verify", flag.ContinueOnError)
	opts := bindVerifyFlags(flags)
	if err := flags.Parse(args); err != nil {
		return err
	}
	file, digest, plugin := opts.file, opts.digest, opts.plugin

	if *plugin != "" {
		fetcher, err := s.fetcher(ctx)
		if err != nil {
			return err
		}
		cat, err := s.loadCatalog(ctx, fetcher, *opts.catalogURL)
		if err != nil {
			return err
		}
		entry, err := cat.Get(*plugin)
		if err != nil {
			return err
		}
		if *digest == "" {
			*digest = entry.SHA256
		}
		if *file == "" {
			*file = filepath.Join(s.cfg.Plugins.Dir, entry.Name+installer.ArtifactExt)
		}
	}

	if *file == "" || *digest == "" {
		return fmt.Errorf("either -plugin or both -file and -sha256 are required")
	}

	ok, err := integrity.VerifyFile(*file, *digest)
	if err != nil {
		return err
	}
	if !ok {
		expected, _ := integrity.ExpectedHex(*digest)
		return fmt.Errorf("checksum mismatch for %s (expected %s)", *file, expected)
	}
	a.printf("OK %s\n", *file)
	return nil
}
