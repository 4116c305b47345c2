// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package host

import "github.com/beevik/cmd"

var cmds *cmd.Tree

// A selection is a command found in the command tree together with the
// arguments that followed it on the command line.
type selection struct {
	Command *cmd.Command
	Args    []string
}

func init() {
	root := cmd.NewTree(cmd.TreeDescriptor{Name: "avc"})
	root.AddCommand(cmd.CommandDescriptor{
		Name:        "help",
		Brief:       "Display help for a command",
		Description: "Display help for a command.",
		Usage:       "help [<command>]",
		Data:        (*Host).cmdHelp,
	})
	root.AddCommand(cmd.CommandDescriptor{
		Name:  "assemble",
		Brief: "Assemble a file and save the rom",
		Description: "Run the assembler on the specified file, producing" +
			" a rom file and source map file if successful. The rom file" +
			" name defaults to the source file name with an .avcr" +
			" extension.",
		Usage: "assemble <filename> [<romfile>]",
		Data:  (*Host).cmdAssemble,
	})
	root.AddCommand(cmd.CommandDescriptor{
		Name:  "disassemble",
		Brief: "Disassemble code",
		Description: "Disassemble machine code starting at the requested" +
			" address. The number of instruction lines to disassemble may be" +
			" specified as an option. If no address is specified, the" +
			" disassembly continues from where the last disassembly left off." +
			" Addresses may be numbers or label names.",
		Usage: "disassemble [<address>] [<lines>]",
		Data:  (*Host).cmdDisassemble,
	})
	root.AddCommand(cmd.CommandDescriptor{
		Name:  "labels",
		Brief: "List label addresses",
		Description: "Display the address of every label defined by the" +
			" most recently loaded rom's source map.",
		Usage: "labels",
		Data:  (*Host).cmdLabels,
	})
	root.AddCommand(cmd.CommandDescriptor{
		Name:  "load",
		Brief: "Load a rom file",
		Description: "Load the code image of a rom file into memory at" +
			" $0300. If the file has an associated source map, it will be" +
			" loaded too.",
		Usage: "load <filename>",
		Data:  (*Host).cmdLoad,
	})

	// Memory commands
	me := root.AddSubtree(cmd.TreeDescriptor{Name: "memory", Brief: "Memory commands"})
	me.AddCommand(cmd.CommandDescriptor{
		Name:  "dump",
		Brief: "Dump memory at address",
		Description: "Dump the contents of memory starting from the" +
			" specified address. The number of bytes to dump may be" +
			" specified as an option. If no address is specified, the" +
			" memory dump continues from where the last dump left off.",
		Usage: "memory dump [<address>] [<bytes>]",
		Data:  (*Host).cmdMemoryDump,
	})

	root.AddCommand(cmd.CommandDescriptor{
		Name:        "quit",
		Brief:       "Quit the program",
		Description: "Quit the program.",
		Usage:       "quit",
		Data:        (*Host).cmdQuit,
	})
	root.AddCommand(cmd.CommandDescriptor{
		Name:  "set",
		Brief: "Set a configuration variable",
		Description: "Set the value of a configuration variable. To see the" +
			" current values of all configuration variables, type set" +
			" without any arguments.",
		Usage: "set [<var> <value>]",
		Data:  (*Host).cmdSet,
	})

	// Add command shortcuts.
	root.AddShortcut("a", "assemble")
	root.AddShortcut("d", "disassemble")
	root.AddShortcut("m", "memory dump")
	root.AddShortcut("?", "help")

	cmds = root
}
