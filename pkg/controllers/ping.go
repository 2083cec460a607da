package controllers

import (
	"net/http"
	"time"

	"khoomi-api-io/checkout/pkg/util"

	"github.com/gin-gonic/gin"
)

func Ping(c *gin.Context) {
	util.HandleSuccess(c, http.StatusOK, "pong", gin.H{"local_time": time.Now().Local()})
}
