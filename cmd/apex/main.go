// Command apex is the APEX pipeline simulator driver (spec §6): it loads
// a program, wires it to a pipeline.Engine, and dispatches one of the
// four control-surface verbs. None of this is part of the core the
// specification scopes — it is the "outer loop" §2 lists as an external
// collaborator, implemented here so the repository is runnable end to
// end.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/apex-sim/apexcpu/isa"
	"github.com/apex-sim/apexcpu/loader"
	"github.com/apex-sim/apexcpu/pipeline"
	"github.com/apex-sim/apexcpu/trace"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if len(os.Args) < 3 {
		fmt.Fprintf(os.Stderr, "APEX_Help: usage: %s <input_file> <simulate|display|single_step|show_mem> [n|addr]\n", os.Args[0])
		os.Exit(1)
	}

	filename := os.Args[1]
	command := os.Args[2]
	arg := "-1"
	if len(os.Args) > 3 {
		arg = os.Args[3]
	}

	code, err := loader.Load(filename)
	if err != nil {
		logger.Error("APEX_Error: unable to initialize CPU", "err", err)
		os.Exit(1)
	}
	logger.Debug("APEX_CPU: initialized", "instructions", len(code), "pc", pipeline.CodeBasePC)

	if err := run(code, command, arg); err != nil {
		logger.Error("APEX_Error: simulation aborted", "err", err)
		os.Exit(1)
	}
}

func run(code []isa.Instruction, command, arg string) error {
	switch command {
	case "simulate":
		budget := parseBudget(arg)
		eng := pipeline.New(code, trace.DiscardSink{})
		err := eng.Run(budget)
		printReport(eng)
		return err

	case "display":
		budget := parseBudget(arg)
		eng := pipeline.New(code, trace.LineSink{Write: func(s string) { fmt.Println(s) }})
		err := eng.Run(budget)
		printReport(eng)
		return err

	case "single_step":
		return runSingleStep(code)

	case "show_mem":
		addr, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("show_mem: invalid address %q: %w", arg, err)
		}
		eng := pipeline.New(code, trace.DiscardSink{})
		runErr := eng.Run(0)
		printReport(eng)
		fmt.Printf("value at %d memory location is %d. \n", addr, eng.DataMemory[addr])
		return runErr

	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func parseBudget(arg string) int {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// printReport renders the final register-file and data-memory snapshot
// (spec §6 "Reporting surface").
func printReport(eng *pipeline.Engine) {
	fmt.Println()
	fmt.Println("=============== STATE OF ARCHITECTURAL REGISTER FILE ============== ")
	fmt.Println("If register's status is 0 then its valid else if 1 then invalid ")
	for i := 0; i < pipeline.NumRegisters; i++ {
		fmt.Printf("| REG[%-2d] | Value = %-4d | Status = %d |\n", i, eng.Regs[i], eng.Busy[i])
	}

	fmt.Println()
	fmt.Println("============== STATE OF DATA MEMORY ============= ")
	for i := 0; i < 100; i++ {
		fmt.Printf("|   MEM[%-2d]   |   Data Value = %d   |\n", i, eng.DataMemory[i])
	}
	fmt.Println()

	if eng.Branches.Resolved() > 0 {
		fmt.Printf("APEX_CPU: branch outcomes resolved = %d, standing-counter accuracy = %.1f%%\n",
			eng.Branches.Resolved(), eng.Branches.Accuracy()*100)
	}

	if eng.Fault != nil {
		fmt.Printf("APEX_CPU: simulation trapped: %v\n", eng.Fault)
		return
	}
	fmt.Printf("APEX_CPU: Simulation Complete, cycles = %d instructions = %d\n", eng.Clock, eng.Retired)
}
