// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/beevik/avc/asm"
	"github.com/beevik/avc/disasm"
	"github.com/beevik/avc/host"
	"github.com/beevik/avc/isa"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const defaultROM = "out.avcr"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "avc",
	Short: "An assembler and toolbox for the AVC stack machine.",
	Long: `Assemble AVC source files into rom images, disassemble rom
images, and explore them in an interactive shell.`,
}

var assembleCmd = &cobra.Command{
	Use:   "assemble [flags] source_file [rom_file]",
	Short: "assemble a source file into a rom image.",
	Long: `Assemble a source file into a rom image. The rom is written
to out.avcr unless a rom file is given.`,
	Args: cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		configureLogging(cmd)
		romPath := defaultROM
		if len(args) > 1 {
			romPath = args[1]
		}

		var mapPath string
		if getFlag(cmd, "map") {
			mapPath = romPath[:len(romPath)-len(filepath.Ext(romPath))] + ".map"
		}

		config := asm.Config{
			Log:           log.StandardLogger(),
			MaxMacroDepth: int(getUint(cmd, "max-macro-depth")),
		}
		if err := asm.AssembleFile(args[0], romPath, mapPath, config); err != nil {
			exitOnError(err)
		}
		log.Infof("assembled '%s' to '%s'", args[0], romPath)
	},
}

var disasmCmd = &cobra.Command{
	Use:   "disasm rom_file",
	Short: "disassemble a rom image.",
	Long:  `Print the disassembly of every instruction in a rom image.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		configureLogging(cmd)
		file, err := os.Open(args[0])
		if err != nil {
			exitOnError(err)
		}
		defer file.Close()

		var rom asm.Assembly
		if _, err := rom.ReadFrom(file); err != nil {
			exitOnError(fmt.Errorf("%s: %w", args[0], err))
		}

		mem := isa.NewFlatMemory()
		mem.StoreBytes(asm.CodeStart, rom.Image())

		end := asm.CodeStart + len(rom.Image())
		for addr := asm.CodeStart; addr < end; {
			line, next := disasm.Disassemble(mem, uint16(addr))
			fmt.Printf("%04X-   %s\n", addr, line)
			if int(next) <= addr {
				break
			}
			addr = int(next)
		}
	},
}

var shellCmd = &cobra.Command{
	Use:   "shell [script_file ...]",
	Short: "run the interactive shell.",
	Long: `Run the commands in each script file, then read commands from
standard input. A prompt is shown when standard input is a terminal.`,
	Run: func(cmd *cobra.Command, args []string) {
		configureLogging(cmd)
		h := host.New()

		// Run commands contained in command-line files.
		for _, filename := range args {
			file, err := os.Open(filename)
			if err != nil {
				exitOnError(err)
			}
			h.RunCommands(file, os.Stdout, false)
			file.Close()
		}

		// Run commands interactively.
		h.RunCommands(os.Stdin, os.Stdout, term.IsTerminal(int(os.Stdin.Fd())))
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "increase logging verbosity")
	assembleCmd.Flags().Bool("map", false, "write a source map next to the rom")
	assembleCmd.Flags().Uint("max-macro-depth", asm.DefaultMaxMacroDepth, "maximum nested macro expansions")
	rootCmd.AddCommand(assembleCmd)
	rootCmd.AddCommand(disasmCmd)
	rootCmd.AddCommand(shellCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// Configure log level.
func configureLogging(cmd *cobra.Command) {
	if getFlag(cmd, "verbose") {
		log.SetLevel(log.DebugLevel)
	}
}

// Get an expected flag, or exit if an error arises.
func getFlag(cmd *cobra.Command, flag string) bool {
	r, err := cmd.Flags().GetBool(flag)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}
	return r
}

// Get an expected unsigned flag, or exit if an error arises.
func getUint(cmd *cobra.Command, flag string) uint {
	r, err := cmd.Flags().GetUint(flag)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}
	return r
}

func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
	os.Exit(1)
}
