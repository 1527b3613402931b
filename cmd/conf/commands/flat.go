package commands

import (
	"fmt"

	"github.com/dannyrandall/conferences/internal/conference"
	"github.com/dannyrandall/conferences/internal/flatfile"
	"github.com/spf13/cobra"
)

func newDumpCommand() *cobra.Command {
	var (
		file string
		name string
		year int
	)

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Write a new conference to a flat file",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := flatfile.Open(file)
			if err != nil {
				return err
			}

			c := conference.New(name, year)
			fmt.Fprintln(cmd.OutOrStdout(), c)
			return f.Save(c)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "data.pck", "flat file; the extension picks the encoding (.pck/.gob, .json, .yaml)")
	cmd.Flags().StringVar(&name, "name", "pycon", "conference name")
	cmd.Flags().IntVar(&year, "year", 2011, "conference year")
	return cmd
}

func newModifyCommand() *cobra.Command {
	var (
		file string
		year int
	)

	cmd := &cobra.Command{
		Use:   "modify",
		Short: "Load the conference from a flat file, change its year and write it back",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := flatfile.Open(file)
			if err != nil {
				return err
			}

			_, err = f.Update(func(c *conference.Conference) {
				fmt.Fprintln(cmd.OutOrStdout(), c)
				c.SetYear(year)
			})
			return err
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "data.pck", "flat file")
	cmd.Flags().IntVar(&year, "year", 2012, "new conference year")
	return cmd
}

func newShowCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the conference stored in a flat file",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := flatfile.Open(file)
			if err != nil {
				return err
			}

			c, err := f.Load()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), c)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "data.pck", "flat file")
	return cmd
}
