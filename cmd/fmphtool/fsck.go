// fsck.go -- 'fsck' command implementation
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim is made to its
// suitability for any purpose.

package main

import (
	"fmt"
	"os"

	"github.com/opencoff/go-succinct/constdb"
	flag "github.com/opencoff/pflag"
)

type fsckCommand struct{}

func init() {
	m := fsckCommand{}
	registerCommand("fsck", &m)
}

func (m *fsckCommand) run(args []string, opt *Option) (err error) {
	var db *constdb.DBReader

	fs := flag.NewFlagSet("fsck", flag.ExitOnError)
	fs.SetOutput(os.Stdout)
	fs.Usage = func() {
		fmt.Printf(`Usage: fsck [options] DB

where  'DB' is the name of the constdb file

Options:
`)
		fs.PrintDefaults()
		os.Exit(0)
	}

	err = fs.Parse(args[1:])
	if err != nil {
		return fmt.Errorf("fsck: %w", err)
	}

	args = fs.Args()
	if len(args) < 1 {
		return fmt.Errorf("fsck: insufficient args")
	}

	fn := args[0]
	db, err = constdb.NewDBReader(fn, 1000)
	if err != nil {
		return fmt.Errorf("fsck: %w", err)
	}

	defer db.Close()

	opt.Printf(db.Desc())
	return nil
}
