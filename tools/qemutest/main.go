//go:build linux

// Command qemutest boots a kernel image built with the "ktest" command line
// flag inside QEMU, follows the self-test protocol on the emulated serial
// port and exits with a non-zero status if any test fails.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"syscall"
	"time"

	tty "github.com/mattn/go-tty"
	"golang.org/x/sys/unix"
)

var (
	qemuBin = flag.String("qemu", "qemu-system-x86_64", "emulator binary")
	image   = flag.String("image", "build/kernel-x86_64.iso", "bootable ISO image")
	memory  = flag.String("m", "128M", "guest memory size")
	timeout = flag.Duration("timeout", 2*time.Minute, "kill the emulator after this long")
	verbose = flag.Bool("v", false, "echo serial output")
)

func main() {
	flag.Parse()
	log.SetFlags(0)
	log.SetPrefix("qemutest: ")

	rep, passed, err := run()
	if rep != nil {
		log.Print(rep)
	}
	if err != nil {
		log.Fatal(err)
	}
	if !passed || !rep.complete() {
		os.Exit(1)
	}
}

func emulatorArgs() []string {
	return []string{
		"-cdrom", *image,
		"-m", *memory,
		"-serial", "pty",
		"-display", "none",
		"-no-reboot",
		"-device", "isa-debug-exit,iobase=0xf4,iosize=0x04",
	}
}

func run() (*report, bool, error) {
	cmd := exec.Command(*qemuBin, emulatorArgs()...)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: unix.SIGKILL,
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, false, err
	}
	if err = cmd.Start(); err != nil {
		return nil, false, fmt.Errorf("starting %s: %w", *qemuBin, err)
	}

	timer := time.AfterFunc(*timeout, func() {
		log.Printf("timeout after %v; killing emulator", *timeout)
		_ = unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	})
	defer timer.Stop()

	rep := new(report)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := followSerial(stderr, rep); err != nil {
			log.Print(err)
		}
	}()

	waitErr := cmd.Wait()
	<-done

	status := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return rep, false, waitErr
		}
		status = exitErr.ExitCode()
	}

	passed, err := classifyExit(status)
	return rep, passed, err
}

// followSerial waits for the emulator to announce the pty backing the serial
// port, then feeds every line read from it to rep.
func followSerial(stderr io.Reader, rep *report) error {
	var path string
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		if p, ok := ptyPath(scanner.Text()); ok {
			path = p
			break
		}
		log.Print(scanner.Text())
	}
	if path == "" {
		return errors.New("emulator did not report a serial pty")
	}

	// Keep draining stderr so the emulator never blocks on it.
	go func() { _, _ = io.Copy(os.Stderr, stderr) }()

	ttyObj, err := tty.OpenDevice(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer ttyObj.Close()
	_ = ttyObj.MustRaw()

	lines := bufio.NewScanner(ttyObj.Input())
	for lines.Scan() {
		if *verbose {
			fmt.Println(lines.Text())
		}
		rep.observe(lines.Text())
		if rep.complete() {
			return nil
		}
	}
	return nil
}
