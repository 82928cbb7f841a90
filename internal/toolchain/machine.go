package toolchain

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"tmachine/internal/llvmenv"
	"tmachine/internal/target"
	"tmachine/internal/trace"
)

// Target is one backend registered by llc.
type Target struct {
	info TargetInfo
	reg  *Registry
}

func (t *Target) Name() string        { return t.info.Name }
func (t *Target) Description() string { return t.info.Description }

// CreateTargetMachine binds the target to a concrete configuration.
func (t *Target) CreateTargetMachine(triple, cpu, features string, opts target.Options, reloc target.RelocModel) llvmenv.Machine {
	return &Machine{
		target:   t,
		triple:   triple,
		cpu:      cpu,
		features: features,
		opts:     opts,
		reloc:    reloc,
	}
}

// Machine drives llc with a fixed target configuration.
type Machine struct {
	target   *Target
	triple   string
	cpu      string
	features string
	opts     target.Options
	reloc    target.RelocModel
}

var _ llvmenv.Machine = (*Machine)(nil)

func (m *Machine) Target() llvmenv.Target        { return m.target }
func (m *Machine) Triple() string                { return m.triple }
func (m *Machine) CPU() string                   { return m.cpu }
func (m *Machine) Features() string              { return m.features }
func (m *Machine) Options() target.Options       { return m.opts }
func (m *Machine) RelocModel() target.RelocModel { return m.reloc }

// Args renders the machine configuration as llc flags.
func (m *Machine) Args() []string {
	args := []string{"-mtriple=" + m.triple, "-mcpu=" + m.cpu}
	if m.features != "" {
		args = append(args, "-mattr="+m.features)
	}
	if m.reloc != target.RelocDefault {
		args = append(args, "-relocation-model="+m.reloc.String())
	}
	args = append(args,
		"-float-abi="+m.opts.FloatABI.String(),
		"-fp-contract="+m.opts.AllowFPOpFusion.String(),
	)
	if m.opts.UnsafeFPMath {
		args = append(args, "-enable-unsafe-fp-math")
	}
	if m.opts.NoInfsFPMath {
		args = append(args, "-enable-no-infs-fp-math")
	}
	if m.opts.NoNaNsFPMath {
		args = append(args, "-enable-no-nans-fp-math")
	}
	return args
}

// EmitFile runs llc on irPath, writing an object or assembly file.
func (m *Machine) EmitFile(ctx context.Context, irPath, outPath string, opts llvmenv.EmitOptions) error {
	if opts.OptLevel < 0 || opts.OptLevel > 3 {
		return fmt.Errorf("invalid optimization level %d (expected 0..3)", opts.OptLevel)
	}
	llc := m.target.reg.LLCPath()
	if llc == "" {
		if err := m.target.reg.ProbeErr(); err != nil {
			return err
		}
		return errors.New("llc path unknown; registry not initialized")
	}

	_, span := trace.Start(ctx, trace.ScopeFile, "llc")
	args := m.Args()
	args = append(args,
		"-filetype="+opts.FileType.String(),
		"-O"+strconv.Itoa(opts.OptLevel),
		irPath, "-o", outPath,
	)
	if err := runCommand(ctx, m.target.reg.cfg.CommandLog, llc, args...); err != nil {
		span.End(err.Error())
		return err
	}
	span.WithExtra("out", outPath).End("")
	return nil
}
