//go:build integration

package integration

import (
	"os"
	"syscall"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/carhud/headunit/internal/domain"
	"github.com/carhud/headunit/internal/infra"
	"github.com/carhud/headunit/internal/usecase"
	"github.com/carhud/headunit/test/fixtures"
)

var _ = Describe("Engine Supervisor", func() {
	var (
		engine     *fixtures.FakeEngine
		supervisor *usecase.Supervisor
	)

	newSupervisor := func() *usecase.Supervisor {
		cfg := usecase.DefaultSupervisorConfig(engine.Dir, engine.ExecutablePath())
		cfg.GracePeriod = 100 * time.Millisecond
		cfg.StopTimeout = 500 * time.Millisecond
		cfg.RestartPause = 20 * time.Millisecond

		settings := infra.NewFileSettingsWriter(engine.SettingsPath(), engine.PipePath)
		pipe := infra.NewFIFOKeyPipe(engine.PipePath)
		runner := infra.NewCommandRunner()
		build := infra.NewBuildWatcher(engine.ExecutablePath(), zap.NewNop())

		return usecase.NewSupervisor(
			cfg,
			settings,
			pipe,
			infra.NewUSBProber(runner, zap.NewNop()),
			build,
			infra.NewProcessManager(),
			zap.NewNop(),
		)
	}

	BeforeEach(func() {
		dir, err := os.MkdirTemp("", "headunit-integration-*")
		Expect(err).NotTo(HaveOccurred())
		engine = fixtures.NewFakeEngine(dir)
		DeferCleanup(func() { os.RemoveAll(dir) })
	})

	AfterEach(func() {
		if supervisor != nil {
			supervisor.Stop()
		}
	})

	Describe("Lifecycle", func() {
		Context("when the engine is built", func() {
			BeforeEach(func() {
				Expect(engine.Build(`echo "waiting for device"; exec sleep 30`)).To(Succeed())
				supervisor = newSupervisor()
			})

			It("starts, reports running, and stops cleanly", func() {
				res := supervisor.StartDefault(true)
				Expect(res.Success).To(BeTrue(), res.Message)
				Expect(res.Status.Running).To(BeTrue())
				Expect(res.Status.State).To(Equal(domain.EngineRunning))

				res = supervisor.Stop()
				Expect(res.Success).To(BeTrue())
				Expect(res.Status.Running).To(BeFalse())
				Expect(res.Status.State).To(Equal(domain.EngineStopped))
			})

			It("writes the settings file before spawning", func() {
				res := supervisor.Start(domain.EngineConfig{Fullscreen: true, Width: 1024, Height: 600})
				Expect(res.Success).To(BeTrue(), res.Message)

				content, err := os.ReadFile(engine.SettingsPath())
				Expect(err).NotTo(HaveOccurred())
				Expect(string(content)).To(ContainSubstring("width = 1024"))
				Expect(string(content)).To(ContainSubstring("height = 600"))
				Expect(string(content)).To(ContainSubstring("key-pipe-path = " + engine.PipePath))
			})

			It("survives a full start-restart-stop cycle", func() {
				Expect(supervisor.StartDefault(true).Success).To(BeTrue())
				res := supervisor.Restart()
				Expect(res.Success).To(BeTrue(), res.Message)
				Expect(res.Status.Running).To(BeTrue())
				Expect(supervisor.Stop().Success).To(BeTrue())
			})
		})

		Context("when the engine is not built", func() {
			BeforeEach(func() {
				supervisor = newSupervisor()
			})

			It("refuses to start", func() {
				res := supervisor.StartDefault(true)
				Expect(res.Success).To(BeFalse())
				Expect(res.Message).To(ContainSubstring("not built"))
			})
		})

		Context("when the engine crashes on startup", func() {
			BeforeEach(func() {
				Expect(engine.Build(`echo "SDL init failed" >&2; exit 2`)).To(Succeed())
				supervisor = newSupervisor()
			})

			It("reports the failure with captured output", func() {
				res := supervisor.StartDefault(true)
				Expect(res.Success).To(BeFalse())
				Expect(res.Message).To(ContainSubstring("SDL init failed"))
				Expect(supervisor.Status().Running).To(BeFalse())
			})
		})
	})

	Describe("Output monitoring", func() {
		It("follows connection markers in engine output", func() {
			Expect(engine.Build(`echo "Device Connected"
sleep 0.3
echo "Device Disconnected"
exec sleep 30`)).To(Succeed())
			supervisor = newSupervisor()

			Expect(supervisor.StartDefault(true).Success).To(BeTrue())

			Eventually(func() domain.EngineState {
				return supervisor.Status().State
			}, 2*time.Second, 20*time.Millisecond).Should(Equal(domain.EngineConnected))

			Eventually(func() domain.EngineState {
				return supervisor.Status().State
			}, 2*time.Second, 20*time.Millisecond).Should(Equal(domain.EngineWaiting))
		})

		It("flips to stopped when the engine exits by itself", func() {
			Expect(engine.Build(`sleep 0.2`)).To(Succeed())
			supervisor = newSupervisor()

			Expect(supervisor.StartDefault(true).Success).To(BeTrue())

			Eventually(func() bool {
				return supervisor.Status().Running
			}, 2*time.Second, 20*time.Millisecond).Should(BeFalse())
		})
	})

	Describe("Key channel", func() {
		BeforeEach(func() {
			Expect(engine.Build(`exec sleep 30`)).To(Succeed())
			Expect(engine.CreatePipe()).To(Succeed())
			supervisor = newSupervisor()
		})

		It("delivers key codes through the FIFO", func() {
			reader, err := os.OpenFile(engine.PipePath, os.O_RDONLY|syscall.O_NONBLOCK, 0)
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(func() { reader.Close() })

			Expect(supervisor.SendKey("select").Success).To(BeTrue())
			Expect(supervisor.SendKey("back").Success).To(BeTrue())

			buf := make([]byte, 8)
			var got []byte
			Eventually(func() []byte {
				n, _ := reader.Read(buf)
				got = append(got, buf[:n]...)
				return got
			}, time.Second, 10*time.Millisecond).Should(Equal([]byte{104, 105, 106}))
		})

		It("fails fast when no reader is attached", func() {
			res := supervisor.SendKey("home")
			Expect(res.Success).To(BeFalse())
			Expect(res.Message).To(ContainSubstring("pipe"))
		})
	})
})
