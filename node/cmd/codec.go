package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/caldog20/chattun/adapter"
	"github.com/caldog20/chattun/pkg/codec"
	"github.com/caldog20/chattun/platform/discord"
	"github.com/caldog20/chattun/platform/telegram"
)

var codecName string

func NewCodecCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "codec",
		Short: "inspect the text codecs",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("please use a subcommand or use -h for help")
		},
	}
	cmd.PersistentFlags().
		StringVar(&codecName, "codec", "base116", "codec to use: "+strings.Join(codec.Names(), ", "))

	cmd.AddCommand(&cobra.Command{
		Use:   "encode",
		Short: "encodes stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			return encode(cmd.InOrStdin(), cmd.OutOrStdout(), codecName)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "decode",
		Short: "decodes stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			return decode(cmd.InOrStdin(), cmd.OutOrStdout(), codecName)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "capacity",
		Short: "prints the largest packet each codec fits into a transport",
		Run: func(cmd *cobra.Command, args []string) {
			capacity(cmd.OutOrStdout())
		},
	})
	return cmd
}

func encode(in io.Reader, out io.Writer, name string) error {
	c, err := codec.Lookup(name)
	if err != nil {
		return err
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, c.Encode(data))
	return err
}

func decode(in io.Reader, out io.Writer, name string) error {
	c, err := codec.Lookup(name)
	if err != nil {
		return err
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return err
	}
	b, err := c.Decode(strings.TrimRight(string(data), "\r\n"))
	if err != nil {
		return err
	}
	_, err = out.Write(b)
	return err
}

func capacity(out io.Writer) {
	header := color.New(color.Bold)
	good := color.New(color.FgGreen)

	header.Fprintf(out, "%-10s %-18s %-18s\n", "codec", "discord message", "telegram slots")
	for _, name := range codec.Names() {
		c, _ := codec.Lookup(name)
		limits := adapter.SlotLimits{
			Primary:   codec.Capacity(c, telegram.MaxTitleLen),
			Secondary: codec.Capacity(c, telegram.MaxDescriptionLen),
		}

		fmt.Fprintf(out, "%-10s ", name)
		good.Fprintf(out, "%-18s ", fmt.Sprintf("%d bytes", codec.Capacity(c, discord.MaxMessageLen)))
		good.Fprintf(out, "%-18s\n", fmt.Sprintf("%d bytes", limits.MaxPacket()))
	}
}
