package service

import (
	"errors"
	"log"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"city.newnan/mc-console/internal/config"
	"city.newnan/mc-console/internal/db"
	"city.newnan/mc-console/internal/middleware"
	"city.newnan/mc-console/internal/model"
)

var (
	ErrOperatorNotFound = errors.New("操作员不存在")
	ErrOperatorExists   = errors.New("用户名已存在")
	ErrWrongPassword    = errors.New("密码错误")
	ErrOperatorDisabled = errors.New("账号已禁用")
)

// OperatorService 提供操作员相关功能
type OperatorService struct {
	Config *config.Config
}

// NewOperatorService 创建操作员服务实例
func NewOperatorService(cfg *config.Config) *OperatorService {
	return &OperatorService{
		Config: cfg,
	}
}

// Login 操作员登录
func (s *OperatorService) Login(login model.OperatorLogin) (*model.Operator, string, error) {
	var operator model.Operator
	if err := db.DB.Preload("Role").Where("username = ?", login.Username).First(&operator).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrOperatorNotFound
		}
		return nil, "", err
	}

	// 验证密码
	if err := bcrypt.CompareHashAndPassword([]byte(operator.Password), []byte(login.Password)); err != nil {
		return nil, "", ErrWrongPassword
	}

	// 检查账号状态
	if operator.Status != 1 {
		return nil, "", ErrOperatorDisabled
	}

	// 更新最后登录时间
	operator.LastLogin = time.Now()
	if err := db.DB.Model(&operator).Update("last_login", operator.LastLogin).Error; err != nil {
		return nil, "", err
	}

	token, err := middleware.GenerateToken(operator, s.Config)
	if err != nil {
		return nil, "", err
	}

	return &operator, token, nil
}

// GetOperatorByID 根据ID获取操作员
func (s *OperatorService) GetOperatorByID(id uint) (*model.Operator, error) {
	var operator model.Operator
	if err := db.DB.Preload("Role").First(&operator, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOperatorNotFound
		}
		return nil, err
	}
	return &operator, nil
}

// CreateOperator 创建操作员
func (s *OperatorService) CreateOperator(req model.OperatorCreate) (*model.Operator, error) {
	var existing model.Operator
	if err := db.DB.Where("username = ?", req.Username).First(&existing).Error; err == nil {
		return nil, ErrOperatorExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	role, err := NewRoleService().GetRoleByName(req.Role)
	if err != nil {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	operator := model.Operator{
		Username: req.Username,
		Password: string(hashedPassword),
		RoleID:   role.ID,
		Status:   1,
	}
	if err := db.DB.Create(&operator).Error; err != nil {
		return nil, err
	}
	operator.Role = *role

	return &operator, nil
}

// ListOperators 获取操作员列表（分页）
func (s *OperatorService) ListOperators(page, pageSize int, query string) ([]model.Operator, int64, error) {
	var operators []model.Operator
	var total int64

	// 每次查询使用新的语句
	filtered := func() *gorm.DB {
		tx := db.DB.Model(&model.Operator{})
		if query != "" {
			tx = tx.Where("username LIKE ?", "%"+query+"%")
		}
		return tx
	}

	if err := filtered().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := filtered().Preload("Role").Order("id").Offset((page - 1) * pageSize).Limit(pageSize).Find(&operators).Error; err != nil {
		return nil, 0, err
	}

	return operators, total, nil
}

// DeleteOperator 删除操作员
func (s *OperatorService) DeleteOperator(id uint) error {
	// 硬删除，允许之后重新使用该用户名
	result := db.DB.Unscoped().Delete(&model.Operator{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOperatorNotFound
	}
	return nil
}

// SetStatus 启用或禁用操作员
func (s *OperatorService) SetStatus(id uint, enabled bool) error {
	status := 0
	if enabled {
		status = 1
	}
	result := db.DB.Model(&model.Operator{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOperatorNotFound
	}
	return nil
}

// EnsureAdmin 确保存在一个管理员账号
// password 为空时跳过；账号已存在时不修改密码
func (s *OperatorService) EnsureAdmin(username, password string) error {
	if password == "" {
		log.Printf("未设置ADMIN_PASSWORD，跳过创建管理员账号")
		return nil
	}

	_, err := s.CreateOperator(model.OperatorCreate{
		Username: username,
		Password: password,
		Role:     model.RoleOp,
	})
	if errors.Is(err, ErrOperatorExists) {
		return nil
	}
	if err != nil {
		return err
	}

	log.Printf("已创建管理员账号: %s", username)
	return nil
}
