// defaults.go default values for every configuration key
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaultConfig sets the default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "PetMood")
	viper.SetDefault("main.datadir", "data")

	viper.SetDefault("logging.default_level", "info")
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console.enabled", true)
	viper.SetDefault("logging.console.level", "info")
	viper.SetDefault("logging.file_output.enabled", true)
	viper.SetDefault("logging.file_output.path", "logs/petmood.log")
	viper.SetDefault("logging.file_output.level", "info")

	viper.SetDefault("webserver.host", "")
	viper.SetDefault("webserver.port", 5000)
	viper.SetDefault("webserver.shutdowntimeout", 10*time.Second)
	viper.SetDefault("webserver.maxuploadmb", 16)
	viper.SetDefault("webserver.ratelimit.rps", 5.0)
	viper.SetDefault("webserver.ratelimit.burst", 10)
	viper.SetDefault("webserver.history.defaultlimit", 50)
	viper.SetDefault("webserver.history.maxlimit", 500)
	viper.SetDefault("webserver.history.cachettl", 30*time.Second)

	viper.SetDefault("database.type", "sqlite")
	viper.SetDefault("database.slowthreshold", 200*time.Millisecond)
	viper.SetDefault("database.sqlite.path", "data/petmood.db")
	viper.SetDefault("database.mysql.host", "localhost")
	viper.SetDefault("database.mysql.port", "3306")
	viper.SetDefault("database.mysql.username", "petmood")
	viper.SetDefault("database.mysql.password", "")
	viper.SetDefault("database.mysql.database", "petmood")

	viper.SetDefault("emotion.cat.enabled", true)
	viper.SetDefault("emotion.cat.modelpath", "models/cat_emotion.onnx")
	viper.SetDefault("emotion.cat.modelurl", "")
	viper.SetDefault("emotion.cat.backend", "auto")
	viper.SetDefault("emotion.cat.normalization", "")
	viper.SetDefault("emotion.cat.inputname", "input")
	viper.SetDefault("emotion.cat.outputname", "output")
	viper.SetDefault("emotion.cat.probabilities", false)

	viper.SetDefault("emotion.dog.enabled", true)
	viper.SetDefault("emotion.dog.modelpath", "models/dog_emotion.tflite")
	viper.SetDefault("emotion.dog.modelurl", "")
	viper.SetDefault("emotion.dog.backend", "auto")
	viper.SetDefault("emotion.dog.normalization", "raw255")
	viper.SetDefault("emotion.dog.inputname", "input")
	viper.SetDefault("emotion.dog.outputname", "output")
	viper.SetDefault("emotion.dog.probabilities", true)

	viper.SetDefault("emotion.inference.threads", 0)
	viper.SetDefault("emotion.inference.maxconcurrent", 2)
	viper.SetDefault("emotion.inference.onnxlibrarypath", "")
	viper.SetDefault("emotion.inference.fetchtimeout", 2*time.Minute)

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.topic", "petmood")
	viper.SetDefault("mqtt.username", "")
	viper.SetDefault("mqtt.password", "")
	viper.SetDefault("mqtt.clientid", "")
	viper.SetDefault("mqtt.qos", 0)
	viper.SetDefault("mqtt.retain", false)

	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.listen", "")

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")
	viper.SetDefault("sentry.environment", "production")
	viper.SetDefault("sentry.samplerate", 1.0)
}
