package tempering

import (
	"os"
	"os/signal"
	"syscall"
)

// installSignals arms SIGINT to clear the run flag (graceful shutdown, the
// Go equivalent of ctrl_c_handler) and SIGUSR1/SIGUSR2 to request a
// probability-history dump at the next reporting tick (the equivalent of
// sigusr_handler, which re-arms itself - here signal.Notify already keeps
// delivering, so no re-arming is needed).
func (d *Driver) installSignals() {
	sigCh := make(chan os.Signal, 4)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGUSR1, syscall.SIGUSR2)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case sig, ok := <-sigCh:
				if !ok {
					return
				}
				switch sig {
				case syscall.SIGINT:
					d.run.Store(false)
				case syscall.SIGUSR1, syscall.SIGUSR2:
					d.dump.Store(true)
				}
			case <-done:
				return
			}
		}
	}()

	d.stopSig = func() {
		signal.Stop(sigCh)
		close(done)
	}
}

func (d *Driver) stopSignals() {
	if d.stopSig != nil {
		d.stopSig()
		d.stopSig = nil
	}
}
