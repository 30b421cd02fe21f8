package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/okian/tapp/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.CommandQueueSize, convey.ShouldEqual, 1024)
				convey.So(cfg.Persistence, convey.ShouldEqual, "memory")
				convey.So(cfg.SessionID, convey.ShouldEqual, int64(1))
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("TAPP_ADDR", ":8080")
			_ = os.Setenv("TAPP_COMMAND_QUEUE_SIZE", "64")
			_ = os.Setenv("TAPP_SESSION_ID", "7")
			_ = os.Setenv("TAPP_FINALIZE_TIMEOUT_MS", "2500")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.CommandQueueSize, convey.ShouldEqual, 64)
				convey.So(cfg.SessionID, convey.ShouldEqual, int64(7))
				convey.So(cfg.FinalizeTimeoutMS, convey.ShouldEqual, 2500)
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			tmpFile := createTempConfigFile(`
addr: ":9090"
command_queue_size: 256
persistence: postgres
postgres_url: "postgres://tapp@localhost/tapp"
postgres_max_conns: 4
catalog_file: "/etc/tapp/catalog.yaml"
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("TAPP_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from the file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.CommandQueueSize, convey.ShouldEqual, 256)
				convey.So(cfg.Persistence, convey.ShouldEqual, config.PersistencePostgres)
				convey.So(cfg.PostgresMaxConns, convey.ShouldEqual, int32(4))
				convey.So(cfg.CatalogFile, convey.ShouldEqual, "/etc/tapp/catalog.yaml")
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			tmpFile := createTempConfigFile(`
addr: ":9090"
command_queue_size: 256
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("TAPP_CONFIG", tmpFile)
			_ = os.Setenv("TAPP_ADDR", ":8081")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8081")
				convey.So(cfg.CommandQueueSize, convey.ShouldEqual, 256)
			})
		})

		convey.Convey("When loading config with an invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("TAPP_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with a non-existent file", func() {
			_ = os.Setenv("TAPP_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with an empty addr", func() {
			_ = os.Setenv("TAPP_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("TAPP_COMMAND_QUEUE_SIZE", "not_a_number")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func clearConfigEnvVars() {
	for _, envVar := range []string{
		"TAPP_CONFIG",
		"TAPP_ADDR",
		"TAPP_COMMAND_QUEUE_SIZE",
		"TAPP_SESSION_ID",
		"TAPP_FINALIZE_TIMEOUT_MS",
		"TAPP_PERSISTENCE",
		"TAPP_POSTGRES_URL",
	} {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "tapp-config-*.yaml")
	if err != nil {
		panic(err)
	}
	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}
	if err := tmpFile.Close(); err != nil {
		panic(err)
	}
	return tmpFile.Name()
}
