package middleware

import (
	"net/http"

	"github.com/casbin/casbin/v2"
	casbinmodel "github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/gin-gonic/gin"

	"city.newnan/mc-console/internal/db"
	"city.newnan/mc-console/internal/model"
)

// DefaultModel 内置的RBAC模型，op 角色继承 member 的全部权限
const DefaultModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch2(r.obj, p.obj) && (r.act == p.act || p.act == "*")
`

var (
	enforcer *casbin.Enforcer
)

// InitCasbin 初始化Casbin，modelPath 为空时使用内置模型
func InitCasbin(modelPath string) error {
	// 创建适配器
	adapter, err := gormadapter.NewAdapterByDB(db.DB)
	if err != nil {
		return err
	}

	// 创建执行器
	if modelPath != "" {
		enforcer, err = casbin.NewEnforcer(modelPath, adapter)
	} else {
		var m casbinmodel.Model
		m, err = casbinmodel.NewModelFromString(DefaultModel)
		if err != nil {
			return err
		}
		enforcer, err = casbin.NewEnforcer(m, adapter)
	}
	if err != nil {
		return err
	}

	// 加载策略
	return enforcer.LoadPolicy()
}

// GetEnforcer 获取Casbin执行器
func GetEnforcer() *casbin.Enforcer {
	return enforcer
}

// Authorize 授权中间件，以角色名作为主体
func Authorize() gin.HandlerFunc {
	return func(c *gin.Context) {
		if enforcer == nil {
			c.JSON(http.StatusInternalServerError, model.ErrorResponse(500, "权限系统未初始化"))
			c.Abort()
			return
		}

		roleName := GetCurrentRoleName(c)
		if roleName == "" {
			c.JSON(http.StatusUnauthorized, model.ErrorResponse(401, "未授权: 无法获取用户角色"))
			c.Abort()
			return
		}

		ok, err := enforcer.Enforce(roleName, c.Request.URL.Path, c.Request.Method)
		if err != nil {
			c.JSON(http.StatusInternalServerError, model.ErrorResponse(500, "权限检查失败: "+err.Error()))
			c.Abort()
			return
		}

		if !ok {
			c.JSON(http.StatusForbidden, model.ErrorResponse(403, "权限不足: 你不是管理员"))
			c.Abort()
			return
		}

		c.Next()
	}
}
