package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		AppName          string
		Env              string // DEV (local; default), TEST, QA, PROD
		Build            string
		Debug            bool
		TestMode         bool
		SecretKey        string
		WorkDir          string
		FrontendBaseURL  string
		RollbarToken     string
		SendgridApiKey   string
		defaultFromEmail string

		Server    serverConfig
		Database  databaseConfig
		Redis     redisConfig
		WhatsApp  whatsAppConfig
		Storage   storageConfig
		Bulletins bulletinConfig
	}

	serverConfig struct {
		Host               string
		Address            string
		DebugHost          string
		ReadTimeout        time.Duration
		WriteTimeout       time.Duration
		ShutdownTimeout    time.Duration
		JWTExpirationDelta time.Duration
	}

	databaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		MaxOpenConns  int
		MaxIdleConns  int
	}

	redisConfig struct {
		Addr      string
		Password  string
		DB        int
		Queue     string
		DLQSuffix string
	}

	whatsAppConfig struct {
		BaseURL       string
		AccessToken   string
		PhoneNumberID string
		Timeout       time.Duration
	}

	storageConfig struct {
		Endpoint  string
		Region    string
		Bucket    string
		AccessKey string
		SecretKey string
		UseSSL    bool
	}

	bulletinConfig struct {
		MaxGrade          float64
		TransitionRetries int
		NotifyTimeout     time.Duration
		NotifyWorkers     int
	}
)

// NewConfig loads the configuration from the environment, after the optional `config/.env.<env>` file.
// Variables are prefixed with the environment name, e.g. PROD_DATABASE_HOST.
func NewConfig() *Config {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("appName", "Educafric")
	conf.SetDefault("build", "develop")
	conf.SetDefault("debug", true)
	conf.SetDefault("secretKey", "k3s9-q@x!v2d$+71=fl&uwmh5(z!t)#*b8(#re^$naj4pqo")
	conf.SetDefault("frontendBaseURL", "http://localhost:3000")
	conf.SetDefault("defaultFromEmail", "Educafric <noreply@localhost>")

	conf.SetDefault("server_host", "localhost")
	conf.SetDefault("server_address", ":8000")
	conf.SetDefault("server_debugHost", ":4000")
	conf.SetDefault("server_readTimeout", 5*time.Second)
	conf.SetDefault("server_writeTimeout", 5*time.Second)
	conf.SetDefault("server_shutdownTimeout", 5*time.Second)
	conf.SetDefault("server_jwtExpirationDelta", 7*24*time.Hour)

	conf.SetDefault("database_engine", "postgres")
	conf.SetDefault("database_host", "localhost")
	conf.SetDefault("database_port", "5432")
	conf.SetDefault("database_name", "educafric")
	conf.SetDefault("database_user", "educafric")
	conf.SetDefault("database_password", "educafric")
	conf.SetDefault("database_disableTLS", true)
	conf.SetDefault("database_maxOpenConns", 20)
	conf.SetDefault("database_maxIdleConns", 5)

	conf.SetDefault("redis_db", 0)
	conf.SetDefault("redis_queue", "bulletins:notifications")
	conf.SetDefault("redis_dlqSuffix", ":dlq")

	conf.SetDefault("whatsapp_baseURL", "https://graph.facebook.com/v18.0")
	conf.SetDefault("whatsapp_timeout", 10*time.Second)

	conf.SetDefault("storage_region", "us-east-1")
	conf.SetDefault("storage_bucket", "bulletins")
	conf.SetDefault("storage_useSSL", true)

	conf.SetDefault("bulletins_maxGrade", 20.0)
	conf.SetDefault("bulletins_transitionRetries", 3)
	conf.SetDefault("bulletins_notifyTimeout", 30*time.Second)
	conf.SetDefault("bulletins_notifyWorkers", 4)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		conf.SetDefault("testMode", true)
	}
	conf.SetEnvPrefix(env)
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	return &Config{
		AppName:          conf.GetString("appName"),
		Env:              env,
		Build:            conf.GetString("build"),
		Debug:            conf.GetBool("debug"),
		TestMode:         conf.GetBool("testMode"),
		SecretKey:        conf.GetString("secretKey"),
		WorkDir:          wd,
		FrontendBaseURL:  conf.GetString("frontendBaseURL"),
		RollbarToken:     conf.GetString("rollbarToken"),
		SendgridApiKey:   conf.GetString("sendgridApiKey"),
		defaultFromEmail: conf.GetString("defaultFromEmail"),
		Server: serverConfig{
			Host:               conf.GetString("server_host"),
			Address:            conf.GetString("server_address"),
			DebugHost:          conf.GetString("server_debugHost"),
			ReadTimeout:        conf.GetDuration("server_readTimeout"),
			WriteTimeout:       conf.GetDuration("server_writeTimeout"),
			ShutdownTimeout:    conf.GetDuration("server_shutdownTimeout"),
			JWTExpirationDelta: conf.GetDuration("server_jwtExpirationDelta"),
		},
		Database: databaseConfig{
			Engine:        conf.GetString("database_engine"),
			Host:          conf.GetString("database_host"),
			Port:          conf.GetString("database_port"),
			Name:          conf.GetString("database_name"),
			User:          conf.GetString("database_user"),
			Password:      conf.GetString("database_password"),
			AdminUser:     conf.GetString("database_adminUser"),
			AdminPassword: conf.GetString("database_adminPassword"),
			DisableTLS:    conf.GetBool("database_disableTLS"),
			MaxOpenConns:  conf.GetInt("database_maxOpenConns"),
			MaxIdleConns:  conf.GetInt("database_maxIdleConns"),
		},
		Redis: redisConfig{
			Addr:      conf.GetString("redis_addr"),
			Password:  conf.GetString("redis_password"),
			DB:        conf.GetInt("redis_db"),
			Queue:     conf.GetString("redis_queue"),
			DLQSuffix: conf.GetString("redis_dlqSuffix"),
		},
		WhatsApp: whatsAppConfig{
			BaseURL:       conf.GetString("whatsapp_baseURL"),
			AccessToken:   conf.GetString("whatsapp_accessToken"),
			PhoneNumberID: conf.GetString("whatsapp_phoneNumberID"),
			Timeout:       conf.GetDuration("whatsapp_timeout"),
		},
		Storage: storageConfig{
			Endpoint:  conf.GetString("storage_endpoint"),
			Region:    conf.GetString("storage_region"),
			Bucket:    conf.GetString("storage_bucket"),
			AccessKey: conf.GetString("storage_accessKey"),
			SecretKey: conf.GetString("storage_secretKey"),
			UseSSL:    conf.GetBool("storage_useSSL"),
		},
		Bulletins: bulletinConfig{
			MaxGrade:          conf.GetFloat64("bulletins_maxGrade"),
			TransitionRetries: conf.GetInt("bulletins_transitionRetries"),
			NotifyTimeout:     conf.GetDuration("bulletins_notifyTimeout"),
			NotifyWorkers:     conf.GetInt("bulletins_notifyWorkers"),
		},
	}
}

func (conf *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(conf.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: conf.AppName, Address: conf.defaultFromEmail}
	}
	return *addr
}

func (dbConf databaseConfig) Address() string {
	return net.JoinHostPort(dbConf.Host, dbConf.Port)
}

// Enabled reports whether a Redis server was configured.
func (rConf redisConfig) Enabled() bool {
	return rConf.Addr != ""
}

func (waConf whatsAppConfig) Enabled() bool {
	return waConf.AccessToken != "" && waConf.PhoneNumberID != ""
}

func (sConf storageConfig) Enabled() bool {
	return sConf.Bucket != "" && sConf.AccessKey != ""
}
