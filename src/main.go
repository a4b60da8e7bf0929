package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"tbs/src/boot"
	"tbs/src/common"
	"tbs/src/config"
	"tbs/src/controllers"
	"tbs/src/db"
	"tbs/src/lib"
	awslib "tbs/src/lib/aws"
	"tbs/src/middlewares"
	"tbs/src/models"
	"time"

	"github.com/covalenthq/lumberjack"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	_ "github.com/joho/godotenv/autoload"
	engineiotypes "github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io/v2/socket"
	"gorm.io/gorm"
)

const (
	apiPrefix string = "/api/v1"
)

// parseRequestDate accepts either a full timestamp or a bare date.
func parseRequestDate(value string) (time.Time, error) {
	datetime, err := time.Parse(config.TIME_PARSE_FORMAT, value)
	if err == nil {
		return datetime, nil
	}
	return time.Parse(config.DATE_PARSE_FORMAT, value)
}

func fieldAsString(field reflect.Value) (string, bool) {
	if field.Kind() == reflect.Ptr {
		if field.IsNil() {
			return "", false
		}
		field = field.Elem()
	}
	if field.Kind() != reflect.String {
		return "", false
	}
	return field.String(), true
}

var bookableDateValidatorFunc validator.Func = func(fl validator.FieldLevel) bool {
	date, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	datetime, err := parseRequestDate(date)
	if err != nil {
		return false
	}
	today := time.Now()
	return !today.After(datetime.Add(24 * time.Hour))
}

var gtfield validator.Func = func(fl validator.FieldLevel) bool {
	date, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	datetime, err := parseRequestDate(date)
	if err != nil {
		return false
	}
	other, ok := fieldAsString(fl.Parent().FieldByName(fl.Param()))
	if !ok {
		return true
	}
	fielddatetime, err := parseRequestDate(other)
	if err != nil {
		return false
	}
	return !fielddatetime.After(datetime)
}

var ltfield validator.Func = func(fl validator.FieldLevel) bool {
	date, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	datetime, err := parseRequestDate(date)
	if err != nil {
		return false
	}
	other, ok := fieldAsString(fl.Parent().FieldByName(fl.Param()))
	if !ok {
		return true
	}
	fielddatetime, err := parseRequestDate(other)
	if err != nil {
		return false
	}
	return !datetime.After(fielddatetime)
}

func setupRouter() *gin.Engine {
	router := gin.Default()
	router.Use(middlewares.SecureHeaders)
	router.GET("/", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, "ok")
	})
	return router
}

func maintenanceModeMiddleware(g *gin.Engine) *gin.Engine {
	g.Use(func(ctx *gin.Context) {
		mm := os.Getenv("MAINTENANCE_MODE")
		atoi, err := strconv.ParseBool(mm)
		if err != nil || atoi {
			err := errors.New("server is under maintenance")
			log.Println(err.Error())
			ctx.AbortWithStatusJSON(http.StatusServiceUnavailable, err.Error())
			return
		}
	})
	return g
}

func apiv1Group(g *gin.Engine) *gin.RouterGroup {
	apiv1 := g.Group(apiPrefix)
	return apiv1
}

func publicRoutes(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	apiv1.
		// Serves voucher QR images. Images not yet on disk are pulled
		// from the assets bucket first.
		GET("/share/:filename", func(ctx *gin.Context) {
			var params struct {
				Filename string `uri:"filename" binding:"required"`
			}
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			assets := os.Getenv("TEMP_DIR")
			filePath := path.Join(assets, fmt.Sprintf("%s.jpeg", params.Filename))
			if _, err := os.Stat(filePath); errors.Is(err, os.ErrNotExist) {
				if err := awslib.S3DownloadAsset(params.Filename); err != nil {
					log.Printf("Error downloading asset [%s]: %s\n", params.Filename, err.Error())
					ctx.Status(http.StatusNotFound)
					return
				}
			}
			log.Printf("filePath: %s", filePath)
			ctx.File(filePath)
		})
	return apiv1
}

func guestAuthRoutes(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	guest := apiv1.Group("/auth")
	guest.Use(middlewares.VerifyIdToken)
	guest.
		POST("/login", func(ctx *gin.Context) {
			token, status, err := controllers.AuthLogin(ctx)
			if err != nil {
				log.Printf("[AuthLogin] error: %s\n", err.Error())
				ctx.JSON(status, gin.H{"error": err.Error()})
				return
			}

			ctx.JSON(http.StatusOK, gin.H{
				"token": token,
			})
		}).
		POST("/register", func(ctx *gin.Context) {
			uid, status, err := controllers.AuthRegister(ctx)
			if err != nil {
				log.Printf("[AuthRegister] error: %s\n", err.Error())
				ctx.JSON(status, gin.H{"error": err.Error()})
				return
			}

			ctx.JSON(http.StatusOK, gin.H{"uid": uid})
		})
	return guest
}

// setupSocketServer bridges chat rooms onto socket.io: clients join a
// room by its key and receive every message published there until they
// leave or disconnect.
func setupSocketServer(r *gin.Engine) *socket.Server {
	c := socket.DefaultServerOptions()
	c.SetServeClient(true)
	c.SetPingInterval(time.Second)
	c.SetPingTimeout(200 * time.Millisecond)
	c.SetMaxHttpBufferSize(1_000_000)
	c.SetConnectTimeout(time.Second)
	c.SetCors(&engineiotypes.Cors{
		Origin:      "*",
		Credentials: true,
	})

	wss := socket.NewServer(nil, nil)
	wss.Of("/chat", nil).On("connection", func(clients ...any) {
		client := clients[0].(*socket.Socket)
		log.Printf("[chat] new client: %s\n", string(client.Id()))
		subs := make(map[string]*common.ChatSubscription)

		client.On("join", func(args ...any) {
			if len(args) < 1 {
				return
			}
			roomKey, ok := args[0].(string)
			if !ok || roomKey == "" {
				return
			}
			if _, exists := subs[roomKey]; exists {
				return
			}
			sub := common.GetChatBroker().Subscribe(roomKey)
			subs[roomKey] = sub
			go func() {
				for msg := range sub.C {
					client.Emit("message", msg)
				}
			}()
		})
		client.On("leave", func(args ...any) {
			if len(args) < 1 {
				return
			}
			roomKey, ok := args[0].(string)
			if !ok {
				return
			}
			if sub, exists := subs[roomKey]; exists {
				sub.Dispose()
				delete(subs, roomKey)
			}
		})
		client.On("disconnect", func(args ...any) {
			for _, sub := range subs {
				sub.Dispose()
			}
		})
	})

	r.GET("/socket.io/*any", gin.WrapH(wss.ServeHandler(c)))
	r.POST("/socket.io/*any", gin.WrapH(wss.ServeHandler(c)))
	return wss
}

type Country struct {
	Cca2      string   `json:"cca2"`
	Flag      string   `json:"flag"`
	Timezones []string `json:"timezones"`
	Name      struct {
		Common     string            `json:"common"`
		NativeName map[string]string `json:"nativeName"`
		Official   string            `json:"official"`
	} `json:"name"`
}

func cacheCountries() []Country {
	rd := lib.GetRedisClient()
	var rjson []Country
	val := rd.JSONGet(context.Background(), "countries").Val()
	if val != "" {
		json.Unmarshal([]byte(val), &rjson)
		return rjson
	}
	res, err := http.Get("https://restcountries.com/v3.1/all?fields=name,cca2,flag,timezones")
	if err != nil {
		log.Printf("Error response from API: %s\n", err.Error())
		return []Country{}
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		log.Printf("Error reading response: %s\n", err.Error())
		return []Country{}
	}
	json.Unmarshal(body, &rjson)
	sort.Slice(rjson, func(i, j int) bool {
		return rjson[i].Name.Common < rjson[j].Name.Common
	})
	rd.JSONSet(context.Background(), "countries", "$", rjson)

	return rjson
}

func initLogger() {
	cwd, _ := os.Getwd()
	serverLogs := path.Join(cwd, "logs", "server.log")
	apiLogs := path.Join(cwd, "logs", "api.log")
	gin.ForceConsoleColor()

	f, _ := os.Create(apiLogs)
	gin.DefaultWriter = io.MultiWriter(f, os.Stdout)
	log.SetOutput(&lumberjack.Logger{
		Filename:   serverLogs,
		MaxSize:    500,
		MaxBackups: 3,
		MaxAge:     30,
		Compress:   true,
	})
}

func main() {
	apiEnv := os.Getenv("API_ENV")
	if apiEnv == "local" {
		cwd, _ := os.Getwd()
		if err := godotenv.Load(path.Join(cwd, ".env")); err != nil {
			panic(err)
		}
	}
	initLogger()

	boot.InitDb()
	boot.InitScheduler()

	go boot.DownloadSDKFileFromS3()
	go lib.StripeInitialize()
	go boot.InitBroker()

	go cacheCountries()

	router := setupRouter()
	wss := setupSocketServer(router)
	if wss != nil {
		log.Println("WS server listening for connections...")
	}

	appHost := os.Getenv("APP_HOST")
	if apiEnv == "local" {
		router.Use(cors.Default())
	} else {
		cc := cors.DefaultConfig()
		cc.AllowMethods = append(cc.AllowMethods, "GET", "POST", "PATCH", "PUT", "DELETE", "HEAD")
		cc.AllowHeaders = append(cc.AllowHeaders, "Origin", "Authorization", "x-secret")
		cc.AllowOriginFunc = func(origin string) bool {
			match, _ := regexp.MatchString(`(\w+.?)+\.amazonaws\.com$`, origin)
			if match {
				return true
			}
			match, _ = regexp.MatchString(appHost, origin)
			if match {
				return true
			}
			match, _ = regexp.MatchString("app:mobile", origin)
			return match
		}
		cc.AllowCredentials = true
		cc.AllowAllOrigins = false
		router.Use(cors.New(cc))
	}

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("bookabledate", bookableDateValidatorFunc)
		v.RegisterValidation("gtdate", gtfield)
		v.RegisterValidation("ltdate", ltfield)
	}

	router = maintenanceModeMiddleware(router)

	publicRoutes(router)

	guestAuthRoutes(router)

	authorized := router.Group(apiPrefix)
	authorized.Use(middlewares.AuthMiddleware)
	{
		authorized.GET("/countries", func(ctx *gin.Context) {
			countries := cacheCountries()
			ctx.JSON(http.StatusOK, gin.H{"countries": countries})
		})

		authorized.
			POST("/auth/logout", func(ctx *gin.Context) {
				status, err := controllers.AuthLogout(ctx)
				if err != nil {
					log.Printf("Error on user logout: %s\n", err.Error())
				}
				ctx.Status(status)
			})

		authorized = tripHandlers(authorized)
		authorized = bidHandlers(authorized)
		authorized = chatHandlers(authorized)
		authorized = agencyHandlers(authorized)

		authorized.
			GET("/users/me", func(ctx *gin.Context) {
				var user models.User
				userId := ctx.GetUint("id")
				db := db.GetDb()
				if err := db.Transaction(func(tx *gorm.DB) error {
					if err := tx.
						Where(&models.User{ID: userId}).
						First(&user).
						Error; err != nil {
						return err
					}
					return nil
				}); err != nil {
					if errors.Is(gorm.ErrRecordNotFound, err) {
						ctx.Status(http.StatusNotFound)
						return
					}
					ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
					return
				}
				ctx.JSON(http.StatusOK, gin.H{"data": user})
			})
	}

	if os.Getenv("TLS_ENABLE") == "true" {
		cwd, _ := os.Getwd()
		certpath := path.Join(cwd, "certificates", "localhost.pem")
		keypath := path.Join(cwd, "certificates", "localhost-key.pem")
		if err := router.RunTLS(":9090", certpath, keypath); err != nil {
			log.Fatalf("Failed to start server: %s", err)
		}
	}
	if err := router.Run(":9090"); err != nil {
		log.Fatalf("Failed to start server: %s", err)
	}
}
